package memory

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/store"
)

type Store struct {
	// txMu serializes transactions; mu guards the maps for each single call.
	txMu sync.Mutex
	mu   sync.RWMutex

	nextSaleID   int64
	nextSellerID int64
	nextUserID   int64

	sales   []domain.Sale
	sellers map[int64]domain.Seller
	users   map[int64]domain.User
}

type txContextKey struct{}

type memTx struct {
	undo []func()
}

func New() *Store {
	return &Store{
		sales:   make([]domain.Sale, 0, 64),
		sellers: make(map[int64]domain.Seller),
		users:   make(map[int64]domain.User),
	}
}

// NewSeeded returns a store with one administrator and a few sellers for
// dev/demo mode. The admin password comes from SEED_ADMIN_PASSWORD.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin12345")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		logrus.WithField("component", "memory-store").Warn("using default dev credentials, set SEED_ADMIN_PASSWORD to override")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPwd), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Fatal("memory-store: failed to hash seed password")
	}
	_, _ = s.CreateUser(ctx, domain.User{Name: "Admin", Email: "admin@sales-control.local", PasswordHash: string(hash)})

	for _, seller := range []domain.Seller{
		{Name: "Ana Souza", Email: "ana@sales-control.local"},
		{Name: "Bruno Lima", Email: "bruno@sales-control.local"},
		{Name: "Carla Dias", Email: "carla@sales-control.local"},
	} {
		_, _ = s.CreateSeller(ctx, seller)
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*memTx); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// journal records an undo step when ctx carries a transaction. Callers hold mu.
func journal(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(txContextKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.SellerID < 1 || !sale.Amount.IsPositive() || sale.Commission.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	if _, err := time.Parse(domain.DateLayout, sale.Date); err != nil {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sellers[sale.SellerID]; !ok {
		return nil, store.ErrNotFound
	}

	s.nextSaleID++
	sale.ID = s.nextSaleID
	sale.Seller = nil
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	s.sales = append(s.sales, sale)

	id := sale.ID
	journal(ctx, func() {
		for i := range s.sales {
			if s.sales[i].ID == id {
				s.sales = append(s.sales[:i], s.sales[i+1:]...)
				return
			}
		}
	})

	created := s.withSeller(sale)
	return &created, nil
}

func (s *Store) ListSales(_ context.Context, page int, perPage int) (domain.Page[domain.Sale], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		all = append(all, s.withSeller(sale))
	}
	return paginate(all, page, perPage), nil
}

func (s *Store) ListSalesBySeller(_ context.Context, sellerID int64, page int, perPage int) (domain.Page[domain.Sale], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Sale, 0, 16)
	for _, sale := range s.sales {
		if sale.SellerID == sellerID {
			matched = append(matched, s.withSeller(sale))
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Date != matched[j].Date {
			return matched[i].Date > matched[j].Date
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, page, perPage), nil
}

func (s *Store) DailySalesAggregate(_ context.Context, date string) (store.SalesAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	amount, commission := decimal.Zero, decimal.Zero
	for _, sale := range s.sales {
		if sale.Date != date {
			continue
		}
		count++
		amount = amount.Add(sale.Amount)
		commission = commission.Add(sale.Commission)
	}

	agg := store.SalesAggregate{TotalSales: decimal.NewFromInt(count).String()}
	if count > 0 {
		agg.TotalAmount = amount.StringFixed(2)
		agg.TotalCommission = commission.StringFixed(2)
	}
	return agg, nil
}

func (s *Store) DailySalesAggregateBySeller(_ context.Context, date string) ([]store.SellerSalesAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucket struct {
		count      int64
		amount     decimal.Decimal
		commission decimal.Decimal
	}
	buckets := make(map[int64]*bucket)
	for _, sale := range s.sales {
		if sale.Date != date {
			continue
		}
		b := buckets[sale.SellerID]
		if b == nil {
			b = &bucket{amount: decimal.Zero, commission: decimal.Zero}
			buckets[sale.SellerID] = b
		}
		b.count++
		b.amount = b.amount.Add(sale.Amount)
		b.commission = b.commission.Add(sale.Commission)
	}

	rows := make([]store.SellerSalesAggregate, 0, len(buckets))
	for sellerID, b := range buckets {
		seller := s.sellers[sellerID]
		rows = append(rows, store.SellerSalesAggregate{
			SellerID:    sellerID,
			SellerName:  seller.Name,
			SellerEmail: seller.Email,
			SalesAggregate: store.SalesAggregate{
				TotalSales:      decimal.NewFromInt(b.count).String(),
				TotalAmount:     b.amount.StringFixed(2),
				TotalCommission: b.commission.StringFixed(2),
			},
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SellerID < rows[j].SellerID })
	return rows, nil
}

func (s *Store) CreateSeller(ctx context.Context, seller domain.Seller) (*domain.Seller, error) {
	seller.Name = strings.TrimSpace(seller.Name)
	seller.Email = strings.ToLower(strings.TrimSpace(seller.Email))
	if seller.Name == "" || seller.Email == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sellers {
		if existing.Email == seller.Email {
			return nil, store.ErrConflict
		}
	}

	s.nextSellerID++
	seller.ID = s.nextSellerID
	if seller.CreatedAt.IsZero() {
		seller.CreatedAt = time.Now().UTC()
	}
	s.sellers[seller.ID] = seller

	id := seller.ID
	journal(ctx, func() { delete(s.sellers, id) })

	created := seller
	return &created, nil
}

func (s *Store) GetSeller(_ context.Context, id int64) (*domain.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seller, ok := s.sellers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &seller, nil
}

func (s *Store) ListSellers(_ context.Context, page int, perPage int) (domain.Page[domain.Seller], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Seller, 0, len(s.sellers))
	for _, seller := range s.sellers {
		all = append(all, seller)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page, perPage), nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Name == "" || user.Email == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return nil, store.ErrConflict
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user

	id := user.ID
	journal(ctx, func() { delete(s.users, id) })

	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// withSeller attaches the seller association. Callers hold mu.
func (s *Store) withSeller(sale domain.Sale) domain.Sale {
	if seller, ok := s.sellers[sale.SellerID]; ok {
		sale.Seller = &seller
	}
	return sale
}

func paginate[T any](all []T, page int, perPage int) domain.Page[T] {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = len(all)
		if perPage == 0 {
			perPage = 1
		}
	}
	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return domain.NewPage(append([]T(nil), all[start:end]...), page, perPage, len(all))
}
