package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Managed backend (hosted Postgres with REST + realtime)
	BackendURL         string
	BackendAnonKey     string
	NotifyFunctionPath string
	RealtimeEnabled    bool
	DatabaseURL        string

	// Analytics
	AnalyticsMeasurementID string
	AnalyticsAPISecret     string

	// Appointment wizard
	BookingStartHour    int
	BookingEndHour      int
	BookingSlotMinutes  int
	BookingTimezone     string
	BookingSuccessReset time.Duration

	// Redis-backed cache and sessions
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	CacheTTL      time.Duration
	SessionTTL    time.Duration

	// HTTP surface
	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Relays
	TelegramBotToken      string
	TelegramChatID        int64
	EmailProvider         string
	SendGridAPIKey        string
	SendGridFromEmail     string
	SendGridFromName      string
	SESFromEmail          string
	NotifyEmailRecipients []string
	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string

	// Clinic contacts used by the chatbot
	ClinicPhone   string
	ClinicChatURL string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:         strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
		BackendAnonKey:     getEnv("BACKEND_ANON_KEY", ""),
		NotifyFunctionPath: getEnv("NOTIFY_FUNCTION_PATH", "/functions/v1/notify"),
		RealtimeEnabled:    getEnvAsBool("REALTIME_ENABLED", true),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		AnalyticsMeasurementID: getEnv("ANALYTICS_MEASUREMENT_ID", ""),
		AnalyticsAPISecret:     getEnv("ANALYTICS_API_SECRET", ""),

		BookingStartHour:    getEnvAsInt("BOOKING_START_HOUR", 9),
		BookingEndHour:      getEnvAsInt("BOOKING_END_HOUR", 20),
		BookingSlotMinutes:  getEnvAsInt("BOOKING_SLOT_MINUTES", 30),
		BookingTimezone:     getEnv("BOOKING_TIMEZONE", "Europe/Moscow"),
		BookingSuccessReset: getEnvAsDuration("BOOKING_SUCCESS_RESET", 3*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:        getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		EmailProvider:         strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SendGridAPIKey:        getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:     getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:      getEnv("SENDGRID_FROM_NAME", "Клиника"),
		SESFromEmail:          getEnv("SES_FROM_EMAIL", ""),
		NotifyEmailRecipients: getEnvAsList("NOTIFY_EMAIL_RECIPIENTS"),
		AWSRegion:             getEnv("AWS_REGION", "eu-central-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),

		ClinicPhone:   getEnv("CLINIC_PHONE", "+74950000000"),
		ClinicChatURL: getEnv("CLINIC_CHAT_URL", ""),
	}
}

// Validate checks that the backend credentials are present. Values are not
// probed against the network.
func (c *Config) Validate() error {
	var errs []error
	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	}
	if c.BackendAnonKey == "" {
		errs = append(errs, errors.New("BACKEND_ANON_KEY is required"))
	}
	if c.BookingEndHour <= c.BookingStartHour {
		errs = append(errs, errors.New("BOOKING_END_HOUR must be after BOOKING_START_HOUR"))
	}
	if c.BookingSlotMinutes <= 0 {
		errs = append(errs, errors.New("BOOKING_SLOT_MINUTES must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
