// Package commission computes seller commissions on sale amounts.
package commission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid sale amount")
	ErrInvalidRate   = errors.New("invalid commission rate")
)

var hundred = decimal.NewFromInt(100)

// Calculator applies a fixed percentage rate bound at construction.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	rate decimal.Decimal
}

func NewCalculator(rate decimal.Decimal) *Calculator {
	return &Calculator{rate: rate}
}

func (c *Calculator) Rate() decimal.Decimal {
	return c.rate
}

func (c *Calculator) Calculate(amount decimal.Decimal) (decimal.Decimal, error) {
	return Calculate(amount, c.rate)
}

// Calculate returns amount*rate/100 rounded half-up to two decimal places.
// amount must be positive and rate must lie in [0, 100].
func Calculate(amount decimal.Decimal, rate decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: expected a positive numeric value, got: %s", ErrInvalidAmount, amount.String())
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: rate must be between 0 and 100, got: %s", ErrInvalidRate, rate.String())
	}

	return amount.Mul(rate).Div(hundred).Round(2), nil
}
