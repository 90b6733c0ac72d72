package service

import (
	"context"
	"fmt"

	"github.com/edigar/sales-control/internal/commission"
	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/store"
)

const maxPageSize = 100

// SaleService is the read/write contract shared by the direct and the cached
// implementations.
type SaleService interface {
	CreateSale(ctx context.Context, input domain.SaleInput) (domain.Sale, error)
	GetAllSales(ctx context.Context, pageSize int) (domain.Page[domain.Sale], error)
	GetSalesBySeller(ctx context.Context, sellerID int64, pageSize int) (domain.Page[domain.Sale], error)
}

type SaleStore interface {
	store.Transactor
	store.SaleRepository
}

type Sales struct {
	repo            SaleStore
	calculator      *commission.Calculator
	defaultPageSize int
}

func NewSales(repo SaleStore, calculator *commission.Calculator, defaultPageSize int) *Sales {
	if defaultPageSize < 1 {
		defaultPageSize = 10
	}
	return &Sales{
		repo:            repo,
		calculator:      calculator,
		defaultPageSize: defaultPageSize,
	}
}

// CreateSale computes the commission first; nothing is written when that fails.
func (s *Sales) CreateSale(ctx context.Context, input domain.SaleInput) (domain.Sale, error) {
	value, err := s.calculator.Calculate(input.Amount)
	if err != nil {
		return domain.Sale{}, err
	}

	var created *domain.Sale
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreateSale(ctx, domain.Sale{
			SellerID:   input.SellerID,
			Amount:     input.Amount,
			Commission: value,
			Date:       input.Date,
		})
		return err
	})
	if err != nil {
		return domain.Sale{}, fmt.Errorf("create sale: %w", err)
	}
	return *created, nil
}

func (s *Sales) GetAllSales(ctx context.Context, pageSize int) (domain.Page[domain.Sale], error) {
	var page domain.Page[domain.Sale]
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		page, err = s.repo.ListSales(ctx, 1, s.pageSize(pageSize))
		return err
	})
	return page, err
}

func (s *Sales) GetSalesBySeller(ctx context.Context, sellerID int64, pageSize int) (domain.Page[domain.Sale], error) {
	var page domain.Page[domain.Sale]
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		page, err = s.repo.ListSalesBySeller(ctx, sellerID, 1, s.pageSize(pageSize))
		return err
	})
	return page, err
}

func (s *Sales) pageSize(requested int) int {
	return clampPageSize(requested, s.defaultPageSize)
}

func clampPageSize(requested int, fallback int) int {
	if requested < 1 {
		return fallback
	}
	if requested > maxPageSize {
		return maxPageSize
	}
	return requested
}
