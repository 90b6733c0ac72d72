package jobs

import (
	"context"

	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/mail"
)

// ReportGenerator produces the daily aggregates the jobs deliver.
//
//go:generate mockgen -destination=mocks/mock_interface.go -package=mock_jobs -source=interface.go
type ReportGenerator interface {
	ResolveDate(date string) (string, error)
	GenerateDailySalesReport(ctx context.Context, date string) (domain.DailySalesReport, error)
	GenerateDailySalesReportBySeller(ctx context.Context, date string) ([]domain.DailySellerSalesReport, error)
}

// UserDirectory lists the administrators who receive the company-wide report.
type UserDirectory interface {
	GetAllUsers(ctx context.Context) ([]domain.User, error)
}

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}
