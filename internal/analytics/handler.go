package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smiledent/clinic-site/pkg/logging"
)

// InitDataHeader carries the embedded platform's launch parameters.
const InitDataHeader = "X-Telegram-Init-Data"

// Handler accepts visitor and event beacons. It always answers 202.
type Handler struct {
	sink     Sink
	platform PlatformContext
	visitors *VisitorRecorder
	logger   *logging.Logger
	// async runs fn after the response; tests replace it to run inline.
	async func(fn func(ctx context.Context))
}

// NewHandler creates an analytics handler.
func NewHandler(sink Sink, platform PlatformContext, visitors *VisitorRecorder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if sink == nil {
		sink = NoopSink{}
	}
	if platform == nil {
		platform = NoPlatform{}
	}
	return &Handler{
		sink:     sink,
		platform: platform,
		visitors: visitors,
		logger:   logger,
		async: func(fn func(ctx context.Context)) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				fn(ctx)
			}()
		},
	}
}

// Routes mounts /visitors and /events.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes adds the endpoints to an existing router, for sharing /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/visitors", h.RecordVisitor)
	r.Post("/events", h.TrackEvent)
}

type visitorRequest struct {
	Visit
	InitData string `json:"init_data,omitempty"`
}

// RecordVisitor handles POST /api/visitors
func (h *Handler) RecordVisitor(w http.ResponseWriter, r *http.Request) {
	var req visitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}
	initData := req.InitData
	if initData == "" {
		initData = r.Header.Get(InitDataHeader)
	}
	profile, err := h.platform.Profile(initData)
	if err != nil && !errors.Is(err, ErrNoPlatform) {
		h.logger.Debug("analytics: platform profile rejected", "platform", h.platform.Name(), "error", err)
	}
	if h.visitors != nil {
		visit := req.Visit
		h.async(func(ctx context.Context) { h.visitors.Record(ctx, visit, profile) })
	}
	w.WriteHeader(http.StatusAccepted)
}

// TrackEvent handles POST /api/events
func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.Name == "" {
		http.Error(w, "event name is required", http.StatusBadRequest)
		return
	}
	h.async(func(ctx context.Context) { h.sink.Track(ctx, ev) })
	w.WriteHeader(http.StatusAccepted)
}
