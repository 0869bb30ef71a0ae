package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	appconfig "github.com/smiledent/clinic-site/internal/config"
	"github.com/smiledent/clinic-site/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, metrics := setupMetrics()
	if handler == nil || metrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	metrics.ObserveAppointment("success")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "clinic_booking_appointments_total") {
		t.Fatalf("expected appointment counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestConnectRedis(t *testing.T) {
	logger := logging.New("error")
	if client := connectRedis(context.Background(), &appconfig.Config{}, logger); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}

	mr := miniredis.RunT(t)
	client := connectRedis(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	_ = client.Close()

	addr := mr.Addr()
	mr.Close()
	if client := connectRedis(context.Background(), &appconfig.Config{RedisAddr: addr}, logger); client != nil {
		t.Fatalf("expected nil client for unreachable redis")
	}
}

func TestSetupRelays(t *testing.T) {
	logger := logging.New("error")

	if relays := setupRelays(context.Background(), &appconfig.Config{EmailProvider: "none"}, logger); len(relays) != 0 {
		t.Fatalf("expected no relays, got %d", len(relays))
	}

	// A provider without an API key must not yield a typed-nil relay.
	cfg := &appconfig.Config{EmailProvider: "sendgrid", NotifyEmailRecipients: []string{"admin@clinic.example"}}
	if relays := setupRelays(context.Background(), cfg, logger); len(relays) != 0 {
		t.Fatalf("expected no relays without sendgrid key, got %d", len(relays))
	}

	cfg.SendGridAPIKey = "SG.test"
	cfg.SendGridFromEmail = "noreply@clinic.example"
	relays := setupRelays(context.Background(), cfg, logger)
	if len(relays) != 1 || relays[0].Name() != "email" {
		t.Fatalf("expected one email relay, got %v", relays)
	}
}

func TestBuildHandlerServesHealthAndCatalog(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(backendSrv.Close)

	t.Setenv("BACKEND_URL", backendSrv.URL)
	t.Setenv("BACKEND_ANON_KEY", "anon")
	cfg := appconfig.Load()
	logger := logging.New("error")
	metricsHandler, siteMetrics := setupMetrics()

	handler, limiter, repo := buildHandler(context.Background(), cfg, logger, deps{
		metrics:        siteMetrics,
		metricsHandler: metricsHandler,
	})
	if limiter == nil || repo == nil {
		t.Fatalf("expected limiter and repository")
	}

	for _, path := range []string{"/health", "/api/doctors", "/api/appointments/slots", "/api/cart", "/metrics"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d: %s", path, rr.Code, rr.Body.String())
		}
	}
}

func TestStartRealtimeDisabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	startRealtime(ctx, &appconfig.Config{RealtimeEnabled: false}, nil, logging.New("error"))
}

func TestLoadLocationFallback(t *testing.T) {
	loc := loadLocation("Mars/Olympus", logging.New("error"))
	if loc == nil {
		t.Fatalf("expected fallback location")
	}
}
