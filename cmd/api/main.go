package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/smiledent/clinic-site/internal/analytics"
	"github.com/smiledent/clinic-site/internal/api/router"
	"github.com/smiledent/clinic-site/internal/backend"
	"github.com/smiledent/clinic-site/internal/backend/realtime"
	"github.com/smiledent/clinic-site/internal/booking"
	"github.com/smiledent/clinic-site/internal/catalog"
	"github.com/smiledent/clinic-site/internal/chatbot"
	appconfig "github.com/smiledent/clinic-site/internal/config"
	"github.com/smiledent/clinic-site/internal/finance"
	"github.com/smiledent/clinic-site/internal/forms"
	httpmiddleware "github.com/smiledent/clinic-site/internal/http/middleware"
	"github.com/smiledent/clinic-site/internal/marketplace"
	"github.com/smiledent/clinic-site/internal/notify"
	"github.com/smiledent/clinic-site/internal/observability/metrics"
	"github.com/smiledent/clinic-site/internal/orders"
	"github.com/smiledent/clinic-site/internal/querycache"
	"github.com/smiledent/clinic-site/internal/session"
	"github.com/smiledent/clinic-site/internal/training"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// realtimeTables are the catalog tables whose cached reads are dropped on change.
var realtimeTables = []string{
	catalog.TablePromotions,
	catalog.TablePromoCodes,
	catalog.TableDoctors,
	catalog.TableServices,
	catalog.TableServiceCategories,
	catalog.TableMarketplaceItems,
	catalog.TableBlogPosts,
	catalog.TableFAQ,
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-site API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}

	metricsHandler, siteMetrics := setupMetrics()
	handler, rateLimiter, repo := buildHandler(ctx, cfg, logger, deps{
		redis:          redisClient,
		pool:           pool,
		metrics:        siteMetrics,
		metricsHandler: metricsHandler,
		relays:         setupRelays(ctx, cfg, logger),
	})
	go rateLimiter.Run(ctx, time.Minute)
	startRealtime(ctx, cfg, repo, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type deps struct {
	redis          *redis.Client
	pool           *pgxpool.Pool
	metrics        *metrics.SiteMetrics
	metricsHandler http.Handler
	relays         []notify.Relay
}

// buildHandler wires every service onto the router.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, d deps) (http.Handler, *httpmiddleware.RateLimiter, *catalog.Repository) {
	client := backend.NewClient(cfg.BackendURL, cfg.BackendAnonKey, logger.Component("backend"),
		backend.WithLatencyObserver(d.metrics))

	var cache querycache.Cache = querycache.NewMemoryCache()
	if d.redis != nil {
		cache = querycache.NewRedisCache(d.redis, "clinic:cache:")
	}
	repo := catalog.NewRepository(client, querycache.NewLoader(cache, cfg.CacheTTL, logger.Component("querycache")))

	notifier := notify.NewClient(client, cfg.NotifyFunctionPath, logger.Component("notify"), d.relays...).
		WithObserver(d.metrics)

	schedule := booking.Schedule{
		StartHour: cfg.BookingStartHour,
		EndHour:   cfg.BookingEndHour,
		Interval:  cfg.BookingSlotMinutes,
		Location:  loadLocation(cfg.BookingTimezone, logger),
	}
	bookingSvc := booking.NewService(
		session.NewStore[booking.Wizard](d.redis, "clinic:wizard:", cfg.SessionTTL),
		repo, notifier,
		booking.Options{Schedule: schedule, SuccessReset: cfg.BookingSuccessReset, Observer: d.metrics},
		logger.Component("booking"),
	)

	var orderRepo marketplace.OrderRepository = marketplace.NewRESTOrderRepository(client)
	if d.pool != nil {
		orderRepo = orders.NewRepository(d.pool)
	}
	cartSvc := marketplace.NewService(
		session.NewStore[marketplace.Cart](d.redis, "clinic:cart:", cfg.SessionTTL),
		repo, orderRepo, notifier, d.metrics, logger.Component("marketplace"),
	)

	bot := chatbot.NewBot(chatbot.Config{Phone: cfg.ClinicPhone, ChatURL: cfg.ClinicChatURL})
	chatSvc := chatbot.NewService(bot,
		session.NewStore[chatbot.Transcript](d.redis, "clinic:chat:", cfg.SessionTTL),
		d.metrics, logger.Component("chatbot"))

	analyticsHandler := analytics.NewHandler(
		analytics.NewMeasurementSink(cfg.AnalyticsMeasurementID, cfg.AnalyticsAPISecret, logger.Component("analytics")),
		analytics.NewTelegramWebApp(cfg.TelegramBotToken, 24*time.Hour),
		analytics.NewVisitorRecorder(client, logger.Component("analytics")),
		logger.Component("analytics"),
	)

	rateLimiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	checks := map[string]router.HealthCheck{}
	if d.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return d.redis.Ping(ctx).Err() }
	}
	if d.pool != nil {
		checks["postgres"] = d.pool.Ping
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		CatalogHandler:     catalog.NewHandler(repo, logger.Component("catalog")),
		BookingHandler:     booking.NewHandler(bookingSvc, logger.Component("booking")),
		CartHandler:        marketplace.NewHandler(cartSvc, logger.Component("marketplace")),
		ChatHandler:        chatbot.NewHandler(chatSvc, logger.Component("chatbot")),
		AnalyticsHandler:   analyticsHandler,
		FormsHandler:       forms.NewHandler(forms.NewService(notifier, logger.Component("forms")), logger.Component("forms")),
		TrainingHandler:    training.NewHandler(training.NewService(client, logger.Component("training")), logger.Component("training")),
		FinanceHandler:     finance.NewHandler(finance.NewService(client, logger.Component("finance")), logger.Component("finance")),
		MetricsHandler:     d.metricsHandler,
		Metrics:            d.metrics,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		SessionTTL:         cfg.SessionTTL,
		SecureCookies:      cfg.Env == "production",
		StaffAuthSecret:    cfg.AdminJWTSecret,
		HealthChecks:       checks,
	})
	return handler, rateLimiter, repo
}

func setupMetrics() (http.Handler, *metrics.SiteMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewSiteMetrics(reg)
}

// setupRelays builds the optional staff notification relays. Only non-nil
// relays are returned so no typed nil reaches the notify client.
func setupRelays(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) []notify.Relay {
	var relays []notify.Relay

	tg, err := notify.NewTelegramRelay(cfg.TelegramBotToken, cfg.TelegramChatID, logger.Component("telegram"))
	switch {
	case err != nil:
		logger.Warn("telegram relay disabled", "error", err)
	case tg != nil:
		relays = append(relays, tg)
	}

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger.Component("sendgrid")); sg != nil {
			sender = sg
		}
	case "ses":
		sesCfg := notify.SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			FromEmail:       cfg.SESFromEmail,
			FromName:        cfg.SendGridFromName,
		}
		client, err := notify.LoadSESClient(ctx, sesCfg)
		if err != nil {
			logger.Warn("ses relay disabled", "error", err)
			break
		}
		if ses := notify.NewSESSender(client, sesCfg, logger.Component("ses")); ses != nil {
			sender = ses
		}
	case "", "none":
	default:
		logger.Warn("unknown email provider", "provider", cfg.EmailProvider)
	}
	if sender != nil {
		if relay := notify.NewEmailRelay(sender, cfg.NotifyEmailRecipients); relay != nil {
			relays = append(relays, relay)
		}
	}

	names := make([]string, 0, len(relays))
	for _, r := range relays {
		names = append(names, r.Name())
	}
	logger.Info("notification relays configured", "relays", names)
	return relays
}

// connectRedis returns nil when REDIS_ADDR is unset or unreachable; callers
// then fall back to in-process stores.
func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Info("redis not configured, using in-memory cache and sessions")
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory cache and sessions", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return client
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := orders.Connect(ctx, url)
	if err != nil {
		logger.Warn("postgres unavailable, orders go through the backend REST API", "error", err)
		return nil
	}
	logger.Info("connected to postgres for orders")
	return pool
}

func startRealtime(ctx context.Context, cfg *appconfig.Config, repo *catalog.Repository, logger *logging.Logger) {
	if !cfg.RealtimeEnabled {
		return
	}
	sub, err := realtime.NewSubscriber(cfg.BackendURL, cfg.BackendAnonKey, logger.Component("realtime"))
	if err != nil {
		logger.Warn("realtime disabled", "error", err)
		return
	}
	for _, table := range realtimeTables {
		sub.Subscribe(table, func(ctx context.Context, change realtime.Change) {
			if err := repo.Invalidate(ctx, change.Table); err != nil {
				logger.Warn("cache invalidation failed", "table", change.Table, "error", err)
				return
			}
			logger.Debug("catalog cache invalidated", "table", change.Table, "type", change.Type)
		})
	}
	if err := sub.Start(ctx); err != nil {
		logger.Warn("realtime not started", "error", err)
	}
}

func loadLocation(name string, logger *logging.Logger) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown booking timezone, using default schedule zone", "timezone", name, "error", err)
		return booking.DefaultSchedule().Location
	}
	return loc
}
