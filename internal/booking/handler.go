package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smiledent/clinic-site/internal/catalog"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// Handler serves the appointment wizard endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a wizard handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// View is the wizard as returned to the site.
type View struct {
	Wizard      *Wizard           `json:"wizard"`
	CanContinue bool              `json:"can_continue"`
	Services    []catalog.Service `json:"services,omitempty"`
	Slots       []string          `json:"slots,omitempty"`
	AutoCloseMs int64             `json:"auto_close_ms,omitempty"`
}

// Routes mounts the wizard under /api/appointments.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/slots", h.Slots)
	r.Get("/dates", h.Dates)
	r.Post("/wizard", h.Open)
	r.Route("/wizard/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Close)
		r.Post("/category", h.SelectCategory)
		r.Post("/service", h.SelectService)
		r.Post("/date", h.SelectDate)
		r.Post("/time", h.SelectTime)
		r.Post("/contact", h.SetContact)
		r.Post("/back", h.Back)
		r.Post("/submit", h.Submit)
	})
	return r
}

func (h *Handler) view(w *Wizard) View {
	v := View{Wizard: w, CanContinue: w.CanContinue()}
	if w.State == StateSelectingDateTime && w.Draft.SelectedDate != "" {
		v.Slots = h.svc.Schedule().Slots()
	}
	if w.State == StateSuccess {
		v.AutoCloseMs = h.svc.SuccessReset().Milliseconds()
	}
	return v
}

// Slots handles GET /api/appointments/slots
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"slots": h.svc.Schedule().Slots()})
}

// Dates handles GET /api/appointments/dates?from=YYYY-MM-DD&days=N
func (h *Handler) Dates(w http.ResponseWriter, r *http.Request) {
	from := h.svc.now().In(h.svc.Schedule().Location)
	if raw := r.URL.Query().Get("from"); raw != "" {
		d, err := ParseDate(raw, h.svc.Schedule().Location)
		if err != nil {
			jsonError(w, ValidationMessage(err), http.StatusBadRequest)
			return
		}
		from = d
	}
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonError(w, "invalid days", http.StatusBadRequest)
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": h.svc.SelectableDates(from, days)})
}

type openRequest struct {
	ServiceID string `json:"service_id"`
	Doctor    string `json:"doctor"`
}

// Open handles POST /api/appointments/wizard
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid JSON", http.StatusBadRequest)
			return
		}
	}
	wz, err := h.svc.Open(r.Context(), req.ServiceID, req.Doctor)
	if err != nil {
		h.writeError(w, wz, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(wz))
}

// Get handles GET /api/appointments/wizard/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	wz, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(wz))
}

// Close handles DELETE /api/appointments/wizard/{id}
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectCategory handles POST .../category {"category_id"}
func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID string `json:"category_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	wz, services, err := h.svc.SelectCategory(r.Context(), chi.URLParam(r, "id"), req.CategoryID)
	if err != nil {
		h.writeError(w, wz, err)
		return
	}
	v := h.view(wz)
	v.Services = services
	if v.Services == nil {
		v.Services = []catalog.Service{}
	}
	writeJSON(w, http.StatusOK, v)
}

// SelectService handles POST .../service {"service_id"}
func (h *Handler) SelectService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceID string `json:"service_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	wz, err := h.svc.SelectService(r.Context(), chi.URLParam(r, "id"), req.ServiceID)
	h.respond(w, wz, err)
}

// SelectDate handles POST .../date {"date"}
func (h *Handler) SelectDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if !decode(w, r, &req) {
		return
	}
	wz, err := h.svc.SelectDate(r.Context(), chi.URLParam(r, "id"), req.Date)
	h.respond(w, wz, err)
}

// SelectTime handles POST .../time {"time"}
func (h *Handler) SelectTime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time string `json:"time"`
	}
	if !decode(w, r, &req) {
		return
	}
	wz, err := h.svc.SelectTime(r.Context(), chi.URLParam(r, "id"), req.Time)
	h.respond(w, wz, err)
}

// SetContact handles POST .../contact
func (h *Handler) SetContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contact
		Consent bool `json:"consent"`
	}
	if !decode(w, r, &req) {
		return
	}
	wz, err := h.svc.SetContact(r.Context(), chi.URLParam(r, "id"), req.Contact, req.Consent)
	h.respond(w, wz, err)
}

// Back handles POST .../back
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	wz, err := h.svc.Back(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, wz, err)
}

// Submit handles POST .../submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	wz, err := h.svc.Submit(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, wz, err)
}

func (h *Handler) respond(w http.ResponseWriter, wz *Wizard, err error) {
	if err != nil {
		h.writeError(w, wz, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(wz))
}

type errorBody struct {
	Error string `json:"error"`
	View
}

func (h *Handler) writeError(w http.ResponseWriter, wz *Wizard, err error) {
	status := http.StatusBadGateway
	msg := MsgSubmitFailed
	switch {
	case errors.Is(err, ErrDraftNotFound):
		status, msg = http.StatusNotFound, "Запись не найдена, откройте форму заново"
	case ValidationMessage(err) != "":
		status, msg = http.StatusBadRequest, ValidationMessage(err)
	default:
		h.logger.Error("booking: request failed", "error", err)
	}
	body := errorBody{Error: msg}
	if wz != nil {
		body.View = h.view(wz)
	}
	writeJSON(w, status, body)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

