package marketplace

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/smiledent/clinic-site/internal/catalog"
	"github.com/smiledent/clinic-site/internal/session"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// MsgCheckoutFailed is shown when the order could not be placed.
const MsgCheckoutFailed = "Не удалось оформить заказ. Попробуйте ещё раз."

var userMessages = []struct {
	err    error
	status int
	msg    string
}{
	{ErrPromoNotFound, http.StatusBadRequest, "Промокод не найден или недействителен"},
	{ErrItemNotFound, http.StatusNotFound, "Товар не найден"},
	{ErrOutOfStock, http.StatusConflict, "Товар закончился"},
	{ErrEmptyCart, http.StatusBadRequest, "Корзина пуста"},
	{ErrNameRequired, http.StatusBadRequest, "Укажите имя"},
	{ErrPhoneRequired, http.StatusBadRequest, "Укажите телефон"},
}

// Handler serves the cart endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a cart handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// CartView is the cart with computed totals.
type CartView struct {
	Lines    []Line             `json:"lines"`
	Promo    *catalog.PromoCode `json:"promo,omitempty"`
	Customer Customer           `json:"customer"`
	Count    int                `json:"count"`
	Subtotal decimal.Decimal    `json:"subtotal"`
	Discount decimal.Decimal    `json:"discount"`
	Total    decimal.Decimal    `json:"total"`
	FlyID    string             `json:"fly_id,omitempty"`
}

func newCartView(c *Cart) CartView {
	lines := c.Lines
	if lines == nil {
		lines = []Line{}
	}
	return CartView{
		Lines:    lines,
		Promo:    c.Promo,
		Customer: c.Customer,
		Count:    c.Count(),
		Subtotal: c.Subtotal(),
		Discount: c.Discount(),
		Total:    c.Total(),
	}
}

// Routes mounts the cart under /api/cart.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{id}", h.UpdateQuantity)
	r.Delete("/items/{id}", h.RemoveItem)
	r.Post("/promo", h.ApplyPromo)
	r.Delete("/promo", h.ClearPromo)
	r.Post("/checkout", h.Checkout)
	return r
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid, ok := session.IDFromContext(r.Context())
	if !ok {
		jsonError(w, "missing session", http.StatusBadRequest)
	}
	return sid, ok
}

// Get handles GET /api/cart
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Cart(r.Context(), sid)
	h.respond(w, c, err)
}

// AddItem handles POST /api/cart/items {"item_id"}
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req struct {
		ItemID string `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		jsonError(w, "item_id is required", http.StatusBadRequest)
		return
	}
	c, fly, err := h.svc.AddItem(r.Context(), sid, req.ItemID)
	if err != nil {
		h.writeError(w, err, catalog.MsgLoadFailed)
		return
	}
	v := newCartView(c)
	v.FlyID = fly
	writeJSON(w, http.StatusOK, v)
}

// UpdateQuantity handles PATCH /api/cart/items/{id} {"delta"}
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	c, err := h.svc.UpdateQuantity(r.Context(), sid, chi.URLParam(r, "id"), req.Delta)
	h.respond(w, c, err)
}

// RemoveItem handles DELETE /api/cart/items/{id}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Remove(r.Context(), sid, chi.URLParam(r, "id"))
	h.respond(w, c, err)
}

// ApplyPromo handles POST /api/cart/promo {"code"}
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	c, err := h.svc.ApplyPromo(r.Context(), sid, req.Code)
	h.respond(w, c, err)
}

// ClearPromo handles DELETE /api/cart/promo
func (h *Handler) ClearPromo(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.ClearPromo(r.Context(), sid)
	h.respond(w, c, err)
}

// Checkout handles POST /api/cart/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	var cu Customer
	if err := json.NewDecoder(r.Body).Decode(&cu); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	order, err := h.svc.Checkout(r.Context(), sid, cu)
	if err != nil {
		h.writeError(w, err, MsgCheckoutFailed)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id": order.ID,
		"total":    order.Total,
		"message":  "Спасибо! Мы свяжемся с вами для подтверждения заказа.",
	})
}

func (h *Handler) respond(w http.ResponseWriter, c *Cart, err error) {
	if err != nil {
		h.writeError(w, err, catalog.MsgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(c))
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			jsonError(w, m.msg, m.status)
			return
		}
	}
	h.logger.Error("marketplace: request failed", "error", err)
	jsonError(w, fallback, http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
