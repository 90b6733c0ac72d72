package store

import (
	"context"
	"errors"

	"github.com/edigar/sales-control/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// Transactor runs fn inside a single transaction. Repository calls made with
// the ctx handed to fn join that transaction; fn returning an error rolls it back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SalesAggregate is the raw result of a daily aggregate query. Numeric columns
// are carried as driver text because SUM over numeric has no fixed Go type;
// NULL (no matching rows) arrives as the empty string.
type SalesAggregate struct {
	TotalSales      string
	TotalAmount     string
	TotalCommission string
}

type SellerSalesAggregate struct {
	SellerID    int64
	SellerName  string
	SellerEmail string
	SalesAggregate
}

type SaleRepository interface {
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context, page int, perPage int) (domain.Page[domain.Sale], error)
	ListSalesBySeller(ctx context.Context, sellerID int64, page int, perPage int) (domain.Page[domain.Sale], error)
	DailySalesAggregate(ctx context.Context, date string) (SalesAggregate, error)
	DailySalesAggregateBySeller(ctx context.Context, date string) ([]SellerSalesAggregate, error)
}

type SellerRepository interface {
	CreateSeller(ctx context.Context, seller domain.Seller) (*domain.Seller, error)
	GetSeller(ctx context.Context, id int64) (*domain.Seller, error)
	ListSellers(ctx context.Context, page int, perPage int) (domain.Page[domain.Seller], error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type Repository interface {
	Transactor
	SaleRepository
	SellerRepository
	UserRepository
}
