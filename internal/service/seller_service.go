package service

import (
	"context"

	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/store"
)

type SellerStore interface {
	store.Transactor
	store.SellerRepository
}

type Sellers struct {
	repo            SellerStore
	defaultPageSize int
}

func NewSellers(repo SellerStore, defaultPageSize int) *Sellers {
	if defaultPageSize < 1 {
		defaultPageSize = 10
	}
	return &Sellers{repo: repo, defaultPageSize: defaultPageSize}
}

func (s *Sellers) CreateSeller(ctx context.Context, input domain.SellerInput) (domain.Seller, error) {
	var created *domain.Seller
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreateSeller(ctx, domain.Seller{Name: input.Name, Email: input.Email})
		return err
	})
	if err != nil {
		return domain.Seller{}, err
	}
	return *created, nil
}

func (s *Sellers) GetAllSellers(ctx context.Context, pageSize int) (domain.Page[domain.Seller], error) {
	var page domain.Page[domain.Seller]
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		page, err = s.repo.ListSellers(ctx, 1, clampPageSize(pageSize, s.defaultPageSize))
		return err
	})
	return page, err
}
