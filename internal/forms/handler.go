package forms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smiledent/clinic-site/pkg/logging"
)

// MsgSendFailed is shown when a form could not be delivered.
const MsgSendFailed = "Не удалось отправить форму. Попробуйте позже."

var validationMessages = map[error]string{
	ErrNameRequired:     "Укажите имя",
	ErrPhoneRequired:    "Укажите телефон",
	ErrConsentRequired:  "Необходимо согласие на обработку персональных данных",
	ErrUnknownPlan:      "Выберите тариф",
	ErrPositionRequired: "Укажите вакансию",
	ErrInvalidRating:    "Поставьте оценку от 1 до 5",
	ErrTextRequired:     "Напишите отзыв",
	ErrTextTooLong:      "Слишком длинный текст",
}

// Handler serves the form endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a forms handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the form endpoints under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes adds the endpoints to an existing router, for sharing /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/loyalty/plans", h.ListPlans)
	r.Post("/loyalty/signup", h.LoyaltySignup)
	r.Post("/careers/apply", h.Apply)
	r.Post("/reviews", h.SubmitReview)
}

// ListPlans handles GET /api/loyalty/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": Plans})
}

// LoyaltySignup handles POST /api/loyalty/signup
func (h *Handler) LoyaltySignup(w http.ResponseWriter, r *http.Request) {
	var in LoyaltySignup
	handle(h, w, r, &in, func(ctx context.Context) error { return h.svc.SignUpLoyalty(ctx, in) })
}

// Apply handles POST /api/careers/apply
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var in JobApplication
	handle(h, w, r, &in, func(ctx context.Context) error { return h.svc.Apply(ctx, in) })
}

// SubmitReview handles POST /api/reviews
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var in Review
	handle(h, w, r, &in, func(ctx context.Context) error { return h.svc.SubmitReview(ctx, in) })
}

func handle(h *Handler, w http.ResponseWriter, r *http.Request, in any, submit func(ctx context.Context) error) {
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	err := submit(r.Context())
	if err == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Спасибо! Мы скоро свяжемся с вами."})
		return
	}
	for sentinel, msg := range validationMessages {
		if errors.Is(err, sentinel) {
			jsonError(w, msg, http.StatusBadRequest)
			return
		}
	}
	h.logger.Error("forms: submission failed", "path", r.URL.Path, "error", err)
	jsonError(w, MsgSendFailed, http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
