package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/store"
)

type Store struct {
	db *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txContextKey struct{}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables used by the store when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sellers (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS sales (
			id         BIGSERIAL PRIMARY KEY,
			seller_id  BIGINT NOT NULL REFERENCES sellers(id),
			amount     NUMERIC(12,2) NOT NULL CHECK (amount > 0),
			commission NUMERIC(12,2) NOT NULL CHECK (commission >= 0),
			date       DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS sales_date_idx ON sales (date);
		CREATE INDEX IF NOT EXISTS sales_seller_date_idx ON sales (seller_id, date DESC);
	`)
	return err
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.SellerID < 1 || !sale.Amount.IsPositive() || sale.Commission.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	if _, err := time.Parse(domain.DateLayout, sale.Date); err != nil {
		return nil, store.ErrInvalidInput
	}

	err := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO sales (seller_id, amount, commission, date, created_at)
		VALUES ($1, $2, $3, $4::date, now())
		RETURNING id, created_at
	`, sale.SellerID, sale.Amount.StringFixed(2), sale.Commission.StringFixed(2), sale.Date).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	seller, err := s.GetSeller(ctx, sale.SellerID)
	if err != nil {
		return nil, err
	}
	sale.Seller = seller
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, page int, perPage int) (domain.Page[domain.Sale], error) {
	page, perPage = normalizePage(page, perPage)

	var total int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&total); err != nil {
		return domain.Page[domain.Sale]{}, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT s.id, s.seller_id, s.amount, s.commission, s.date, s.created_at,
			sl.id, sl.name, sl.email, sl.created_at
		FROM sales s
		JOIN sellers sl ON sl.id = s.seller_id
		ORDER BY s.id
		LIMIT $1 OFFSET $2
	`, perPage, (page-1)*perPage)
	if err != nil {
		return domain.Page[domain.Sale]{}, err
	}
	sales, err := scanSales(rows)
	if err != nil {
		return domain.Page[domain.Sale]{}, err
	}
	return domain.NewPage(sales, page, perPage, total), nil
}

func (s *Store) ListSalesBySeller(ctx context.Context, sellerID int64, page int, perPage int) (domain.Page[domain.Sale], error) {
	page, perPage = normalizePage(page, perPage)

	var total int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE seller_id = $1`, sellerID).Scan(&total); err != nil {
		return domain.Page[domain.Sale]{}, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT s.id, s.seller_id, s.amount, s.commission, s.date, s.created_at,
			sl.id, sl.name, sl.email, sl.created_at
		FROM sales s
		JOIN sellers sl ON sl.id = s.seller_id
		WHERE s.seller_id = $1
		ORDER BY s.date DESC, s.id DESC
		LIMIT $2 OFFSET $3
	`, sellerID, perPage, (page-1)*perPage)
	if err != nil {
		return domain.Page[domain.Sale]{}, err
	}
	sales, err := scanSales(rows)
	if err != nil {
		return domain.Page[domain.Sale]{}, err
	}
	return domain.NewPage(sales, page, perPage, total), nil
}

func (s *Store) DailySalesAggregate(ctx context.Context, date string) (store.SalesAggregate, error) {
	var count, amount, commission sql.NullString
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(id)::text, SUM(amount)::text, SUM(commission)::text
		FROM sales
		WHERE date = $1::date
	`, date).Scan(&count, &amount, &commission)
	if err != nil {
		return store.SalesAggregate{}, err
	}

	return store.SalesAggregate{
		TotalSales:      count.String,
		TotalAmount:     amount.String,
		TotalCommission: commission.String,
	}, nil
}

func (s *Store) DailySalesAggregateBySeller(ctx context.Context, date string) ([]store.SellerSalesAggregate, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT sl.id, sl.name, sl.email,
			COUNT(s.id)::text, SUM(s.amount)::text, SUM(s.commission)::text
		FROM sales s
		JOIN sellers sl ON sl.id = s.seller_id
		WHERE s.date = $1::date
		GROUP BY sl.id, sl.name, sl.email
		ORDER BY sl.id
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]store.SellerSalesAggregate, 0, 16)
	for rows.Next() {
		var row store.SellerSalesAggregate
		var count, amount, commission sql.NullString
		if err := rows.Scan(&row.SellerID, &row.SellerName, &row.SellerEmail, &count, &amount, &commission); err != nil {
			return nil, err
		}
		row.TotalSales = count.String
		row.TotalAmount = amount.String
		row.TotalCommission = commission.String
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateSeller(ctx context.Context, seller domain.Seller) (*domain.Seller, error) {
	seller.Name = strings.TrimSpace(seller.Name)
	seller.Email = strings.ToLower(strings.TrimSpace(seller.Email))
	if seller.Name == "" || seller.Email == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO sellers (name, email, created_at)
		VALUES ($1, $2, now())
		RETURNING id, created_at
	`, seller.Name, seller.Email).Scan(&seller.ID, &seller.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	seller.CreatedAt = seller.CreatedAt.UTC()
	return &seller, nil
}

func (s *Store) GetSeller(ctx context.Context, id int64) (*domain.Seller, error) {
	var seller domain.Seller
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, email, created_at
		FROM sellers
		WHERE id = $1
	`, id).Scan(&seller.ID, &seller.Name, &seller.Email, &seller.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	seller.CreatedAt = seller.CreatedAt.UTC()
	return &seller, nil
}

func (s *Store) ListSellers(ctx context.Context, page int, perPage int) (domain.Page[domain.Seller], error) {
	page, perPage = normalizePage(page, perPage)

	var total int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM sellers`).Scan(&total); err != nil {
		return domain.Page[domain.Seller]{}, err
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, name, email, created_at
		FROM sellers
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, perPage, (page-1)*perPage)
	if err != nil {
		return domain.Page[domain.Seller]{}, err
	}
	defer rows.Close()

	sellers := make([]domain.Seller, 0, perPage)
	for rows.Next() {
		var seller domain.Seller
		if err := rows.Scan(&seller.ID, &seller.Name, &seller.Email, &seller.CreatedAt); err != nil {
			return domain.Page[domain.Seller]{}, err
		}
		seller.CreatedAt = seller.CreatedAt.UTC()
		sellers = append(sellers, seller)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Seller]{}, err
	}
	return domain.NewPage(sellers, page, perPage, total), nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Name == "" || user.Email == "" || user.PasswordHash == "" {
		return nil, store.ErrInvalidInput
	}

	err := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, created_at
	`, user.Name, user.Email, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanSales(rows *sql.Rows) ([]domain.Sale, error) {
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		var seller domain.Seller
		var date time.Time
		if err := rows.Scan(
			&sale.ID, &sale.SellerID, &sale.Amount, &sale.Commission, &date, &sale.CreatedAt,
			&seller.ID, &seller.Name, &seller.Email, &seller.CreatedAt,
		); err != nil {
			return nil, err
		}
		sale.Date = date.UTC().Format(domain.DateLayout)
		sale.CreatedAt = sale.CreatedAt.UTC()
		seller.CreatedAt = seller.CreatedAt.UTC()
		sale.Seller = &seller
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func normalizePage(page int, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	return page, perPage
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
