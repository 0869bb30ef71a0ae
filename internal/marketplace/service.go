package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smiledent/clinic-site/internal/catalog"
	"github.com/smiledent/clinic-site/internal/notify"
	"github.com/smiledent/clinic-site/internal/querycache"
	"github.com/smiledent/clinic-site/internal/session"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// ItemCatalog reads shop items and promo codes.
type ItemCatalog interface {
	MarketplaceItem(ctx context.Context, id string) (catalog.MarketplaceItem, error)
	PromoCodes(ctx context.Context) querycache.Result[[]catalog.PromoCode]
}

// Observer records checkout outcomes.
type Observer interface {
	ObserveOrder(outcome string)
}

// CartStore keeps carts by session id.
type CartStore = session.Store[Cart]

// Service applies cart operations to session carts.
type Service struct {
	carts    CartStore
	items    ItemCatalog
	orders   OrderRepository
	notifier notify.Sender
	observer Observer
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a cart service.
func NewService(carts CartStore, items ItemCatalog, orders OrderRepository, notifier notify.Sender, observer Observer, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		carts:    carts,
		items:    items,
		orders:   orders,
		notifier: notifier,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// Cart returns the session's cart; a missing cart is empty.
func (s *Service) Cart(ctx context.Context, sid string) (*Cart, error) {
	c, _, err := s.carts.Get(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("marketplace: load cart: %w", err)
	}
	return &c, nil
}

func (s *Service) save(ctx context.Context, sid string, c *Cart) error {
	if err := s.carts.Put(ctx, sid, *c); err != nil {
		return fmt.Errorf("marketplace: save cart: %w", err)
	}
	return nil
}

// AddItem puts one unit of itemID in the cart and returns the fly id.
func (s *Service) AddItem(ctx context.Context, sid, itemID string) (*Cart, string, error) {
	item, err := s.items.MarketplaceItem(ctx, itemID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("marketplace: load item: %w", err)
	}
	if !item.InStock {
		return nil, "", fmt.Errorf("%w: %s", ErrOutOfStock, itemID)
	}
	c, err := s.Cart(ctx, sid)
	if err != nil {
		return nil, "", err
	}
	fly := c.AddItem(item)
	if err := s.save(ctx, sid, c); err != nil {
		return nil, "", err
	}
	return c, fly, nil
}

// UpdateQuantity changes a line by delta.
func (s *Service) UpdateQuantity(ctx context.Context, sid, itemID string, delta int) (*Cart, error) {
	c, err := s.Cart(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !c.UpdateQuantity(itemID, delta) {
		return c, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return c, s.save(ctx, sid, c)
}

// Remove drops a line.
func (s *Service) Remove(ctx context.Context, sid, itemID string) (*Cart, error) {
	c, err := s.Cart(ctx, sid)
	if err != nil {
		return nil, err
	}
	c.Remove(itemID)
	return c, s.save(ctx, sid, c)
}

// ApplyPromo looks code up against the current promo list.
func (s *Service) ApplyPromo(ctx context.Context, sid, code string) (*Cart, error) {
	res := s.items.PromoCodes(ctx)
	if res.Err != nil {
		return nil, fmt.Errorf("marketplace: load promo codes: %w", res.Err)
	}
	c, err := s.Cart(ctx, sid)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyPromoCode(code, res.Data); err != nil {
		return c, err
	}
	return c, s.save(ctx, sid, c)
}

// ClearPromo removes the applied promo.
func (s *Service) ClearPromo(ctx context.Context, sid string) (*Cart, error) {
	c, err := s.Cart(ctx, sid)
	if err != nil {
		return nil, err
	}
	c.ClearPromo()
	return c, s.save(ctx, sid, c)
}

// Checkout persists an order and notifies the clinic. Any failure leaves
// the cart as it was; success clears it.
func (s *Service) Checkout(ctx context.Context, sid string, cu Customer) (Order, error) {
	cu.Name = strings.TrimSpace(cu.Name)
	cu.Phone = strings.TrimSpace(cu.Phone)
	cu.Email = strings.TrimSpace(cu.Email)
	if err := cu.Validate(); err != nil {
		s.observe("invalid")
		return Order{}, err
	}
	c, err := s.Cart(ctx, sid)
	if err != nil {
		return Order{}, err
	}
	if len(c.Lines) == 0 {
		s.observe("invalid")
		return Order{}, ErrEmptyCart
	}
	c.Customer = cu

	order, err := s.orders.CreateOrder(ctx, NewOrder(c, cu, s.now()))
	if err != nil {
		s.observe("error")
		s.logger.Error("marketplace: order insert failed", "error", err)
		_ = s.save(ctx, sid, c)
		return Order{}, err
	}

	if err := s.notifier.Send(ctx, notify.Submission{Kind: notify.KindOrder, Data: orderPayload(order)}); err != nil {
		s.observe("error")
		s.logger.Error("marketplace: order notification failed", "order_id", order.ID, "error", err)
		_ = s.save(ctx, sid, c)
		return Order{}, fmt.Errorf("marketplace: notify: %w", err)
	}

	if err := s.carts.Delete(ctx, sid); err != nil {
		s.logger.Warn("marketplace: clear cart failed", "order_id", order.ID, "error", err)
	}
	s.observe("success")
	s.logger.Info("marketplace: order placed", "order_id", order.ID, "total", order.Total.String(), "items", len(order.Items))
	return order, nil
}

func orderPayload(o Order) notify.OrderPayload {
	p := notify.OrderPayload{
		OrderID:   o.ID,
		Name:      o.CustomerName,
		Phone:     o.CustomerPhone,
		Email:     o.CustomerEmail,
		Comment:   o.Comment,
		Subtotal:  o.Subtotal.StringFixed(2),
		Discount:  o.Discount.StringFixed(2),
		Total:     o.Total.StringFixed(2),
		PromoCode: o.PromoCode,
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, notify.OrderLine{
			ItemID:   it.ItemID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
		})
	}
	return p
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveOrder(outcome)
	}
}
