package finance

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smiledent/clinic-site/pkg/logging"
)

const (
	msgInvalidDate = "Неверный формат даты"
	msgLoadFailed  = "Не удалось загрузить финансовые данные"
)

// Handler serves the financial tablo. Routes must sit behind StaffJWT.
type Handler struct {
	svc    *Service
	logger *logging.Logger
	now    func() time.Time
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/accounts", h.ListAccounts)
	r.Get("/transactions", h.ListTransactions)
	r.Get("/summary", h.GetSummary)
	return r
}

// ListAccounts handles GET /api/finance/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	balances, totals, err := h.svc.Balances(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": balances, "totals": totals})
}

// ListTransactions handles GET /api/finance/transactions?account_id=&from=&to=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("from"))
	if err != nil {
		jsonError(w, msgInvalidDate, http.StatusBadRequest)
		return
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		jsonError(w, msgInvalidDate, http.StatusBadRequest)
		return
	}
	txs, err := h.svc.Transactions(r.Context(), Filter{AccountID: q.Get("account_id"), From: from, To: to})
	if err != nil {
		h.fail(w, err)
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": txs})
}

// GetSummary handles GET /api/finance/summary?from=&to=, defaulting to the current month.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	from, to := MonthRange(h.now())
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			jsonError(w, msgInvalidDate, http.StatusBadRequest)
			return
		}
		from = d
	}
	if v := q.Get("to"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			jsonError(w, msgInvalidDate, http.StatusBadRequest)
			return
		}
		to = d
	}
	sum, err := h.svc.Summary(r.Context(), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": sum})
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, v)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidPeriod) {
		jsonError(w, "Начало периода позже окончания", http.StatusBadRequest)
		return
	}
	h.logger.Error("finance: request failed", "error", err)
	jsonError(w, msgLoadFailed, http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
