package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TableOrders is the backend table orders are written to.
const TableOrders = "orders"

// OrderStatusNew is the status of a freshly placed order.
const OrderStatusNew = "new"

// OrderItem is one ordered line.
type OrderItem struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Order is the row persisted for a checkout.
type Order struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Comment       string          `json:"comment,omitempty"`
	Items         []OrderItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PromoCode     string          `json:"promo_code,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderRepository persists orders.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o Order) (Order, error)
}

// NewOrder snapshots the cart into an order.
func NewOrder(c *Cart, cu Customer, now time.Time) Order {
	o := Order{
		ID:            uuid.NewString(),
		CustomerName:  cu.Name,
		CustomerPhone: cu.Phone,
		CustomerEmail: cu.Email,
		Comment:       cu.Comment,
		Items:         make([]OrderItem, 0, len(c.Lines)),
		Subtotal:      c.Subtotal(),
		Discount:      c.Discount(),
		Total:         c.Total(),
		Status:        OrderStatusNew,
		CreatedAt:     now.UTC(),
	}
	for _, l := range c.Lines {
		o.Items = append(o.Items, OrderItem{
			ItemID:   l.Item.ID,
			Name:     l.Item.Name,
			Price:    l.Item.Price,
			Quantity: l.Quantity,
		})
	}
	if c.Promo != nil {
		o.PromoCode = c.Promo.Code
	}
	return o
}

// Inserter writes a row to a backend table.
type Inserter interface {
	Insert(ctx context.Context, table string, row any, out any) error
}

// RESTOrderRepository writes orders through the managed backend's REST API.
type RESTOrderRepository struct {
	backend Inserter
}

// NewRESTOrderRepository creates a REST-backed order repository.
func NewRESTOrderRepository(backend Inserter) *RESTOrderRepository {
	return &RESTOrderRepository{backend: backend}
}

// CreateOrder inserts o and returns the stored representation.
func (r *RESTOrderRepository) CreateOrder(ctx context.Context, o Order) (Order, error) {
	var rows []Order
	if err := r.backend.Insert(ctx, TableOrders, o, &rows); err != nil {
		return Order{}, fmt.Errorf("marketplace: insert order: %w", err)
	}
	if len(rows) == 0 {
		return o, nil
	}
	return rows[0], nil
}
