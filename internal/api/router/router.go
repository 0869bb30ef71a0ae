package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smiledent/clinic-site/internal/analytics"
	"github.com/smiledent/clinic-site/internal/booking"
	"github.com/smiledent/clinic-site/internal/catalog"
	"github.com/smiledent/clinic-site/internal/chatbot"
	"github.com/smiledent/clinic-site/internal/finance"
	"github.com/smiledent/clinic-site/internal/forms"
	httpmiddleware "github.com/smiledent/clinic-site/internal/http/middleware"
	"github.com/smiledent/clinic-site/internal/marketplace"
	"github.com/smiledent/clinic-site/internal/observability/metrics"
	"github.com/smiledent/clinic-site/internal/training"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	CatalogHandler     *catalog.Handler
	BookingHandler     *booking.Handler
	CartHandler        *marketplace.Handler
	ChatHandler        *chatbot.Handler
	AnalyticsHandler   *analytics.Handler
	FormsHandler       *forms.Handler
	TrainingHandler    *training.Handler
	FinanceHandler     *finance.Handler
	MetricsHandler     http.Handler
	Metrics            *metrics.SiteMetrics
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	SessionTTL         time.Duration
	SecureCookies      bool
	StaffAuthSecret    string
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.Metrics != nil {
		r.Use(observeHTTP(cfg.Metrics))
	}

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}

		// Visitor-facing routes share one session id.
		api.Group(func(site chi.Router) {
			site.Use(middleware.Compress(5, "application/json"))
			site.Use(httpmiddleware.Session(cfg.SessionTTL, cfg.SecureCookies))
			if cfg.CatalogHandler != nil {
				cfg.CatalogHandler.RegisterRoutes(site)
			}
			if cfg.FormsHandler != nil {
				cfg.FormsHandler.RegisterRoutes(site)
			}
			if cfg.AnalyticsHandler != nil {
				cfg.AnalyticsHandler.RegisterRoutes(site)
			}
			if cfg.BookingHandler != nil {
				site.Mount("/appointments", cfg.BookingHandler.Routes())
			}
			if cfg.CartHandler != nil {
				site.Mount("/cart", cfg.CartHandler.Routes())
			}
		})

		// The websocket upgrade cannot pass through Compress.
		if cfg.ChatHandler != nil {
			api.With(httpmiddleware.Session(cfg.SessionTTL, cfg.SecureCookies)).Mount("/chat", cfg.ChatHandler.Routes())
		}

		if cfg.TrainingHandler != nil {
			api.With(httpmiddleware.StaffJWT(cfg.StaffAuthSecret, httpmiddleware.RoleStaff)).
				Mount("/training", cfg.TrainingHandler.Routes())
		}
		if cfg.FinanceHandler != nil {
			api.With(httpmiddleware.StaffJWT(cfg.StaffAuthSecret, httpmiddleware.RoleAccountant)).
				Mount("/finance", cfg.FinanceHandler.Routes())
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		body := map[string]any{"status": status}
		if len(results) > 0 {
			body["checks"] = results
		}
		_ = json.NewEncoder(w).Encode(body)
	}
}
