package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	"github.com/smiledent/clinic-site/internal/marketplace"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func sampleOrder() marketplace.Order {
	return marketplace.Order{
		ID:            "ord-1",
		CustomerName:  "Анна",
		CustomerPhone: "+79990000000",
		Items:         []marketplace.OrderItem{{ItemID: "i1", Name: "Щётка", Price: decimal.RequireFromString("450"), Quantity: 2}},
		Subtotal:      decimal.RequireFromString("900"),
		Discount:      decimal.RequireFromString("90"),
		Total:         decimal.RequireFromString("810"),
		PromoCode:     "SMILE10",
		Status:        marketplace.OrderStatusNew,
		CreatedAt:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateOrder(t *testing.T) {
	mock := newMock(t)
	repo := newRepositoryWithQuerier(mock)
	o := sampleOrder()
	stored := o.CreatedAt.Add(time.Second)

	mock.ExpectQuery("INSERT INTO orders").
		WithArgs("ord-1", "Анна", "+79990000000", nil, nil, pgxmock.AnyArg(), "900", "90", "810", "SMILE10", "new", o.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(stored))

	got, err := repo.CreateOrder(context.Background(), o)
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if !got.CreatedAt.Equal(stored) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, stored)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateOrderError(t *testing.T) {
	mock := newMock(t)
	repo := newRepositoryWithQuerier(mock)

	mock.ExpectQuery("INSERT INTO orders").WillReturnError(errors.New("connection reset"))
	if _, err := repo.CreateOrder(context.Background(), sampleOrder()); err == nil {
		t.Fatal("expected error")
	}
}

func TestGet(t *testing.T) {
	mock := newMock(t)
	repo := newRepositoryWithQuerier(mock)
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "customer_name", "customer_phone", "customer_email", "comment",
		"items", "subtotal", "discount", "total", "promo_code", "status", "created_at"}).
		AddRow("ord-1", "Анна", "+79990000000", "", "", []byte(`[{"item_id":"i1","name":"Щётка","price":"450","quantity":2}]`),
			"900.00", "90.00", "810.00", "SMILE10", "new", created)
	mock.ExpectQuery("SELECT id").WithArgs("ord-1").WillReturnRows(rows)

	o, err := repo.Get(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(o.Items) != 1 || o.Items[0].Quantity != 2 {
		t.Fatalf("items = %+v", o.Items)
	}
	if !o.Total.Equal(decimal.RequireFromString("810")) {
		t.Fatalf("total = %s", o.Total)
	}
}

func TestGetNotFound(t *testing.T) {
	mock := newMock(t)
	repo := newRepositoryWithQuerier(mock)

	mock.ExpectQuery("SELECT id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	mock := newMock(t)
	repo := newRepositoryWithQuerier(mock)

	mock.ExpectExec("UPDATE orders").WithArgs("ord-1", "paid").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	changed, err := repo.UpdateStatus(context.Background(), "ord-1", "paid")
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if !changed {
		t.Fatal("expected a changed row")
	}
}

func TestPing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := newRepositoryWithQuerier(mock)

	mock.ExpectPing()
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var _ marketplace.OrderRepository = (*Repository)(nil)
