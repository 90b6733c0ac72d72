package mail

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edigar/sales-control/internal/domain"
)

const subjectDateLayout = "02/01/2006"

//go:embed templates
var templateFS embed.FS

var (
	bodyHTML = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/daily_sales_report.html"))
	bodyText = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/daily_sales_report.txt"))
)

// reportView is the set of fields every report email receives.
type reportView struct {
	RecipientName   string
	TotalSales      int64
	TotalAmount     string
	TotalCommission string
	ReportDate      string
	Year            int
	ForSeller       bool
}

// Subject returns "Daily Sales Report - DD/MM/YYYY" for a YYYY-MM-DD date.
// An unparseable date is used verbatim.
func Subject(reportDate string) string {
	return "Daily Sales Report - " + displayDate(reportDate)
}

// RenderDailySalesReport builds the administrator email for one recipient.
func RenderDailySalesReport(report domain.DailySalesReport, to string) (Message, error) {
	view := newView(report.RecipientName, report.TotalSales, report.TotalAmount, report.TotalCommission, report.ReportDate)
	return render(view, to, Subject(report.ReportDate))
}

// RenderDailySellerSalesReport builds the email sent to the seller's own address.
func RenderDailySellerSalesReport(report domain.DailySellerSalesReport) (Message, error) {
	view := newView(report.SellerName, report.TotalSales, report.TotalAmount, report.TotalCommission, report.ReportDate)
	view.ForSeller = true
	return render(view, report.SellerEmail, Subject(report.ReportDate))
}

func newView(name string, count int64, amount, commission decimal.Decimal, date string) reportView {
	return reportView{
		RecipientName:   name,
		TotalSales:      count,
		TotalAmount:     FormatMoney(amount),
		TotalCommission: FormatMoney(commission),
		ReportDate:      displayDate(date),
		Year:            time.Now().Year(),
	}
}

func render(view reportView, to, subject string) (Message, error) {
	var htmlBody, textBody bytes.Buffer
	if err := bodyHTML.ExecuteTemplate(&htmlBody, "daily_sales_report.html", view); err != nil {
		return Message{}, err
	}
	if err := bodyText.ExecuteTemplate(&textBody, "daily_sales_report.txt", view); err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		ToName:   view.RecipientName,
		Subject:  subject,
		HTMLBody: htmlBody.String(),
		TextBody: textBody.String(),
	}, nil
}

func displayDate(reportDate string) string {
	parsed, err := time.Parse(domain.DateLayout, reportDate)
	if err != nil {
		return reportDate
	}
	return parsed.Format(subjectDateLayout)
}

// FormatMoney renders v with two decimals, "." thousands and "," decimal
// separators: 1500.5 becomes "1.500,50".
func FormatMoney(v decimal.Decimal) string {
	fixed := v.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if v.IsNegative() && !v.Round(2).IsZero() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}
