package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/store"
)

func mustSeller(t *testing.T, s *Store, name, email string) *domain.Seller {
	t.Helper()
	seller, err := s.CreateSeller(context.Background(), domain.Seller{Name: name, Email: email})
	require.NoError(t, err)
	return seller
}

func mustSale(t *testing.T, s *Store, sellerID int64, amount, commission, date string) *domain.Sale {
	t.Helper()
	sale, err := s.CreateSale(context.Background(), domain.Sale{
		SellerID:   sellerID,
		Amount:     decimal.RequireFromString(amount),
		Commission: decimal.RequireFromString(commission),
		Date:       date,
	})
	require.NoError(t, err)
	return sale
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := New()
	seller := mustSeller(t, s, "Ana", "ana@example.com")
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := s.CreateSale(ctx, domain.Sale{
			SellerID:   seller.ID,
			Amount:     decimal.RequireFromString("10"),
			Commission: decimal.RequireFromString("0.85"),
			Date:       "2025-10-26",
		})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	page, err := s.ListSales(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 0, page.Total)
}

func TestCreateSellerRejectsDuplicateEmail(t *testing.T) {
	s := New()
	mustSeller(t, s, "Ana", "ana@example.com")

	_, err := s.CreateSeller(context.Background(), domain.Seller{Name: "Other", Email: "ANA@example.com"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestCreateSaleRequiresExistingSeller(t *testing.T) {
	s := New()
	_, err := s.CreateSale(context.Background(), domain.Sale{
		SellerID:   99,
		Amount:     decimal.RequireFromString("10"),
		Commission: decimal.Zero,
		Date:       "2025-10-26",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSalesBySellerOrdersByDateDesc(t *testing.T) {
	s := New()
	seller := mustSeller(t, s, "Ana", "ana@example.com")
	other := mustSeller(t, s, "Bruno", "bruno@example.com")
	mustSale(t, s, seller.ID, "10", "0.85", "2025-10-24")
	mustSale(t, s, seller.ID, "20", "1.70", "2025-10-26")
	mustSale(t, s, other.ID, "30", "2.55", "2025-10-25")
	mustSale(t, s, seller.ID, "40", "3.40", "2025-10-25")

	page, err := s.ListSalesBySeller(context.Background(), seller.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "2025-10-26", page.Data[0].Date)
	assert.Equal(t, "2025-10-25", page.Data[1].Date)
	assert.Equal(t, "2025-10-24", page.Data[2].Date)
	require.NotNil(t, page.Data[0].Seller)
	assert.Equal(t, "Ana", page.Data[0].Seller.Name)
}

func TestListSalesPaginates(t *testing.T) {
	s := New()
	seller := mustSeller(t, s, "Ana", "ana@example.com")
	for i := 0; i < 5; i++ {
		mustSale(t, s, seller.ID, "10", "0.85", "2025-10-26")
	}

	page, err := s.ListSales(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.LastPage)
	assert.Equal(t, int64(3), page.Data[0].ID)
}

func TestDailySalesAggregateWithoutRows(t *testing.T) {
	s := New()

	agg, err := s.DailySalesAggregate(context.Background(), "2025-10-26")
	require.NoError(t, err)
	assert.Equal(t, "0", agg.TotalSales)
	assert.Empty(t, agg.TotalAmount)
	assert.Empty(t, agg.TotalCommission)
}

func TestDailySalesAggregateBySellerOmitsSellersWithoutSales(t *testing.T) {
	s := New()
	ana := mustSeller(t, s, "Ana", "ana@example.com")
	bruno := mustSeller(t, s, "Bruno", "bruno@example.com")
	mustSale(t, s, ana.ID, "250.00", "21.25", "2025-10-26")
	mustSale(t, s, bruno.ID, "100.00", "8.50", "2025-10-25")

	rows, err := s.DailySalesAggregateBySeller(context.Background(), "2025-10-26")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ana.ID, rows[0].SellerID)
	assert.Equal(t, "ana@example.com", rows[0].SellerEmail)
	assert.Equal(t, "1", rows[0].TotalSales)
	assert.Equal(t, "250.00", rows[0].TotalAmount)
	assert.Equal(t, "21.25", rows[0].TotalCommission)
}
