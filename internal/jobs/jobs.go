package jobs

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edigar/sales-control/internal/mail"
	"github.com/edigar/sales-control/internal/metrics"
)

const (
	AdminReportJobName  = "send-daily-sales-reports-to-admin"
	SellerReportJobName = "send-daily-sales-reports"
)

// Job is one unit of report delivery. Run is idempotent per date: re-running
// it re-sends the same totals.
type Job interface {
	Name() string
	Run(ctx context.Context, date string) error
}

type runIDKey struct{}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

type AdminReportJob struct {
	reports ReportGenerator
	users   UserDirectory
	mailer  Mailer
	log     logrus.FieldLogger
	metrics *metrics.Recorder
}

func NewAdminReportJob(reports ReportGenerator, users UserDirectory, mailer Mailer, log logrus.FieldLogger, rec *metrics.Recorder) *AdminReportJob {
	return &AdminReportJob{reports: reports, users: users, mailer: mailer, log: log, metrics: rec}
}

func (j *AdminReportJob) Name() string { return AdminReportJobName }

// Run sends the company-wide report to every user. A failed send is logged and
// skipped; a failure to build the report or list users aborts the run.
func (j *AdminReportJob) Run(ctx context.Context, date string) error {
	log := j.log.WithFields(logrus.Fields{"job": j.Name(), "run_id": RunIDFrom(ctx)})

	reportDate, err := j.reports.ResolveDate(date)
	if err != nil {
		return fatal(log.WithField("date", date), err)
	}
	log = log.WithField("date", reportDate)
	log.WithField("timestamp", time.Now().Format(time.DateTime)).Info("Starting to send daily sales reports")

	report, err := j.reports.GenerateDailySalesReport(ctx, reportDate)
	if err != nil {
		return fatal(log, err)
	}
	users, err := j.users.GetAllUsers(ctx)
	if err != nil {
		return fatal(log, err)
	}

	sent := 0
	for _, user := range users {
		recipient := log.WithFields(logrus.Fields{"user_id": user.ID, "user_email": user.Email})

		msg, err := mail.RenderDailySalesReport(report.For(user.Name), user.Email)
		if err == nil {
			err = j.mailer.Send(ctx, msg)
		}
		if err != nil {
			j.metrics.EmailFailed(j.Name())
			recipient.WithError(err).Error("Error sending report to user")
			continue
		}

		sent++
		j.metrics.EmailSent(j.Name())
		recipient.WithFields(logrus.Fields{
			"total_sales":      report.TotalSales,
			"total_amount":     report.TotalAmount.StringFixed(2),
			"total_commission": report.TotalCommission.StringFixed(2),
		}).Info("Report sent successfully")
	}

	log.WithFields(logrus.Fields{
		"total_users": len(users),
		"sent_count":  sent,
		"timestamp":   time.Now().Format(time.DateTime),
	}).Info("Daily sales reports sent successfully")
	return nil
}

type SellerReportJob struct {
	reports ReportGenerator
	mailer  Mailer
	log     logrus.FieldLogger
	metrics *metrics.Recorder
}

func NewSellerReportJob(reports ReportGenerator, mailer Mailer, log logrus.FieldLogger, rec *metrics.Recorder) *SellerReportJob {
	return &SellerReportJob{reports: reports, mailer: mailer, log: log, metrics: rec}
}

func (j *SellerReportJob) Name() string { return SellerReportJobName }

// Run sends each seller with sales on the date their own totals.
func (j *SellerReportJob) Run(ctx context.Context, date string) error {
	log := j.log.WithFields(logrus.Fields{"job": j.Name(), "run_id": RunIDFrom(ctx)})

	reportDate, err := j.reports.ResolveDate(date)
	if err != nil {
		return fatal(log.WithField("date", date), err)
	}
	log = log.WithField("date", reportDate)
	log.WithField("timestamp", time.Now().Format(time.DateTime)).Info("Starting to send daily sellers sales reports")

	reports, err := j.reports.GenerateDailySalesReportBySeller(ctx, reportDate)
	if err != nil {
		return fatal(log, err)
	}
	if len(reports) == 0 {
		log.Info("No sales found to send reports")
		return nil
	}

	sent := 0
	for _, report := range reports {
		recipient := log.WithFields(logrus.Fields{"seller_id": report.SellerID, "seller_email": report.SellerEmail})

		msg, err := mail.RenderDailySellerSalesReport(report)
		if err == nil {
			err = j.mailer.Send(ctx, msg)
		}
		if err != nil {
			j.metrics.EmailFailed(j.Name())
			recipient.WithError(err).Error("Error sending report to seller")
			continue
		}

		sent++
		j.metrics.EmailSent(j.Name())
		recipient.WithFields(logrus.Fields{
			"total_sales":      report.TotalSales,
			"total_amount":     report.TotalAmount.StringFixed(2),
			"total_commission": report.TotalCommission.StringFixed(2),
		}).Info("Report sent successfully")
	}

	log.WithFields(logrus.Fields{
		"total_reports": len(reports),
		"sent_count":    sent,
		"timestamp":     time.Now().Format(time.DateTime),
	}).Info("Daily sellers sales reports sent successfully")
	return nil
}

func fatal(log logrus.FieldLogger, err error) error {
	log.WithError(err).WithField("trace", string(debug.Stack())).Error("Error processing daily sales reports")
	return err
}
