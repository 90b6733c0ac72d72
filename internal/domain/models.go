package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for sale dates and report dates.
const DateLayout = "2006-01-02"

type Seller struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Sale is immutable once persisted. Date carries no time component.
type Sale struct {
	ID         int64           `json:"id"`
	SellerID   int64           `json:"seller_id"`
	Seller     *Seller         `json:"seller,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Commission decimal.Decimal `json:"commission"`
	Date       string          `json:"date"`
	CreatedAt  time.Time       `json:"created_at"`
}

type SaleInput struct {
	SellerID int64           `json:"seller_id" validate:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date" validate:"required,datetime=2006-01-02"`
}

type SellerInput struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

type UserInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
}

type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// NewPage fills the paging metadata for a slice already cut to one page.
func NewPage[T any](data []T, page, perPage, total int) Page[T] {
	if data == nil {
		data = []T{}
	}
	lastPage := 1
	if perPage > 0 && total > 0 {
		lastPage = (total + perPage - 1) / perPage
	}
	return Page[T]{
		Data:        data,
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		LastPage:    lastPage,
	}
}

// DailySalesReport is the admin-wide aggregate. RecipientName is "Admin" until
// a per-recipient copy is taken with For.
type DailySalesReport struct {
	RecipientName   string          `json:"recipient_name"`
	TotalSales      int64           `json:"total_sales"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	ReportDate      string          `json:"report_date"`
}

// For returns a copy addressed to name. The receiver is left untouched.
func (r DailySalesReport) For(name string) DailySalesReport {
	r.RecipientName = name
	return r
}

type DailySellerSalesReport struct {
	SellerID        int64           `json:"seller_id"`
	SellerName      string          `json:"seller_name"`
	SellerEmail     string          `json:"seller_email"`
	TotalSales      int64           `json:"total_sales"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	ReportDate      string          `json:"report_date"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type Actor struct {
	UserID int64
	Email  string
}

type ReportTriggerRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Sync bool   `json:"sync"`
}
