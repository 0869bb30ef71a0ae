// Package orders writes marketplace orders straight into Postgres when a
// database URL is configured.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/smiledent/clinic-site/internal/marketplace"
)

// ErrNotFound is returned when an order id has no row.
var ErrNotFound = errors.New("orders: not found")

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Repository persists orders through pgx. It satisfies marketplace.OrderRepository.
type Repository struct {
	pool rowQuerier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("orders: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q rowQuerier) *Repository {
	if q == nil {
		panic("orders: querier required")
	}
	return &Repository{pool: q}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("orders: parse database url: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("orders: open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("orders: ping: %w", err)
	}
	return pool, nil
}

// CreateOrder inserts o and returns it with the database's created_at.
func (r *Repository) CreateOrder(ctx context.Context, o marketplace.Order) (marketplace.Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return marketplace.Order{}, fmt.Errorf("orders: marshal items: %w", err)
	}
	query := `
		INSERT INTO orders (id, customer_name, customer_phone, customer_email, comment, items,
			subtotal, discount, total, promo_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10, $11, $12)
		RETURNING created_at
	`
	var created time.Time
	err = r.pool.QueryRow(ctx, query,
		o.ID, o.CustomerName, o.CustomerPhone, nullable(o.CustomerEmail), nullable(o.Comment), items,
		o.Subtotal.String(), o.Discount.String(), o.Total.String(), nullable(o.PromoCode), o.Status, o.CreatedAt,
	).Scan(&created)
	if err != nil {
		return marketplace.Order{}, fmt.Errorf("orders: insert: %w", err)
	}
	o.CreatedAt = created
	return o, nil
}

// Get loads a single order.
func (r *Repository) Get(ctx context.Context, id string) (marketplace.Order, error) {
	query := `
		SELECT id, customer_name, customer_phone, COALESCE(customer_email, ''), COALESCE(comment, ''),
			items, subtotal::text, discount::text, total::text, COALESCE(promo_code, ''), status, created_at
		FROM orders
		WHERE id = $1
	`
	var (
		o                         marketplace.Order
		items                     []byte
		subtotal, discount, total string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.Comment,
		&items, &subtotal, &discount, &total, &o.PromoCode, &o.Status, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return marketplace.Order{}, ErrNotFound
		}
		return marketplace.Order{}, fmt.Errorf("orders: load: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return marketplace.Order{}, fmt.Errorf("orders: decode items: %w", err)
	}
	for dst, src := range map[*decimal.Decimal]string{&o.Subtotal: subtotal, &o.Discount: discount, &o.Total: total} {
		v, err := decimal.NewFromString(src)
		if err != nil {
			return marketplace.Order{}, fmt.Errorf("orders: decode amount: %w", err)
		}
		*dst = v
	}
	return o, nil
}

// UpdateStatus moves an order to status, reporting whether a row changed.
func (r *Repository) UpdateStatus(ctx context.Context, id, status string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1 AND status <> $2`, id, status)
	if err != nil {
		return false, fmt.Errorf("orders: update status: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Ping reports database reachability for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
