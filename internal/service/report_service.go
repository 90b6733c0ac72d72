package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/store"
)

const defaultRecipientName = "Admin"

type ReportStore interface {
	store.Transactor
	DailySalesAggregate(ctx context.Context, date string) (store.SalesAggregate, error)
	DailySalesAggregateBySeller(ctx context.Context, date string) ([]store.SellerSalesAggregate, error)
}

// Reports builds daily aggregates from stored sales. Totals are the sums of
// the stored commission values; nothing is recomputed here.
type Reports struct {
	repo ReportStore
	loc  *time.Location
	now  func() time.Time
}

func NewReports(repo ReportStore, loc *time.Location) *Reports {
	if loc == nil {
		loc = time.UTC
	}
	return &Reports{repo: repo, loc: loc, now: time.Now}
}

// ResolveDate returns date when set, today in the report timezone otherwise.
func (r *Reports) ResolveDate(date string) (string, error) {
	return ResolveReportDate(date, r.now(), r.loc)
}

func ResolveReportDate(date string, now time.Time, loc *time.Location) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return now.In(loc).Format(domain.DateLayout), nil
	}
	parsed, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: report date must be YYYY-MM-DD, got %q", store.ErrInvalidInput, date)
	}
	return parsed.Format(domain.DateLayout), nil
}

func (r *Reports) GenerateDailySalesReport(ctx context.Context, date string) (domain.DailySalesReport, error) {
	reportDate, err := r.ResolveDate(date)
	if err != nil {
		return domain.DailySalesReport{}, err
	}

	var report domain.DailySalesReport
	err = r.repo.WithinTx(ctx, func(ctx context.Context) error {
		agg, err := r.repo.DailySalesAggregate(ctx, reportDate)
		if err != nil {
			return err
		}
		totals, err := coerceAggregate(agg)
		if err != nil {
			return err
		}
		report = domain.DailySalesReport{
			RecipientName:   defaultRecipientName,
			TotalSales:      totals.count,
			TotalAmount:     totals.amount,
			TotalCommission: totals.commission,
			ReportDate:      reportDate,
		}
		return nil
	})
	if err != nil {
		return domain.DailySalesReport{}, fmt.Errorf("generate daily sales report for %s: %w", reportDate, err)
	}
	return report, nil
}

// GenerateDailySalesReportBySeller returns one report per seller with at least
// one sale on the date. Sellers without sales are absent.
func (r *Reports) GenerateDailySalesReportBySeller(ctx context.Context, date string) ([]domain.DailySellerSalesReport, error) {
	reportDate, err := r.ResolveDate(date)
	if err != nil {
		return nil, err
	}

	var reports []domain.DailySellerSalesReport
	err = r.repo.WithinTx(ctx, func(ctx context.Context) error {
		rows, err := r.repo.DailySalesAggregateBySeller(ctx, reportDate)
		if err != nil {
			return err
		}
		reports = make([]domain.DailySellerSalesReport, 0, len(rows))
		for _, row := range rows {
			totals, err := coerceAggregate(row.SalesAggregate)
			if err != nil {
				return fmt.Errorf("seller %d: %w", row.SellerID, err)
			}
			if totals.count == 0 {
				continue
			}
			reports = append(reports, domain.DailySellerSalesReport{
				SellerID:        row.SellerID,
				SellerName:      row.SellerName,
				SellerEmail:     row.SellerEmail,
				TotalSales:      totals.count,
				TotalAmount:     totals.amount,
				TotalCommission: totals.commission,
				ReportDate:      reportDate,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate daily seller sales reports for %s: %w", reportDate, err)
	}
	return reports, nil
}

type aggregateTotals struct {
	count      int64
	amount     decimal.Decimal
	commission decimal.Decimal
}

// coerceAggregate converts driver text columns; empty means NULL and reads as zero.
func coerceAggregate(agg store.SalesAggregate) (aggregateTotals, error) {
	count, err := parseNumeric(agg.TotalSales)
	if err != nil {
		return aggregateTotals{}, fmt.Errorf("total_sales: %w", err)
	}
	amount, err := parseNumeric(agg.TotalAmount)
	if err != nil {
		return aggregateTotals{}, fmt.Errorf("total_amount: %w", err)
	}
	commissionTotal, err := parseNumeric(agg.TotalCommission)
	if err != nil {
		return aggregateTotals{}, fmt.Errorf("total_commission: %w", err)
	}
	return aggregateTotals{
		count:      count.IntPart(),
		amount:     amount,
		commission: commissionTotal,
	}, nil
}

func parseNumeric(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
