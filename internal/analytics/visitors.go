package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smiledent/clinic-site/pkg/logging"
)

// TableVisitors receives one row per recorded visit.
const TableVisitors = "visitors"

// Visit is the browser fingerprint reported by the page.
type Visit struct {
	Fingerprint string `json:"fingerprint"`
	UserAgent   string `json:"user_agent,omitempty"`
	Language    string `json:"language,omitempty"`
	Screen      string `json:"screen,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	Page        string `json:"page,omitempty"`
}

type visitorRow struct {
	ID             string    `json:"id"`
	Fingerprint    string    `json:"fingerprint"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Language       string    `json:"language,omitempty"`
	Screen         string    `json:"screen,omitempty"`
	Timezone       string    `json:"timezone,omitempty"`
	Referrer       string    `json:"referrer,omitempty"`
	Page           string    `json:"page,omitempty"`
	Platform       string    `json:"platform"`
	TgUserID       *int64    `json:"tg_user_id,omitempty"`
	TgUsername     string    `json:"tg_username,omitempty"`
	TgFirstName    string    `json:"tg_first_name,omitempty"`
	TgLastName     string    `json:"tg_last_name,omitempty"`
	TgLanguageCode string    `json:"tg_language_code,omitempty"`
	TgIsPremium    bool      `json:"tg_is_premium,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Inserter writes a row to a backend table.
type Inserter interface {
	Insert(ctx context.Context, table string, row any, out any) error
}

// VisitorRecorder stores visits in the backend.
type VisitorRecorder struct {
	backend Inserter
	logger  *logging.Logger
	now     func() time.Time
}

// NewVisitorRecorder creates a recorder.
func NewVisitorRecorder(backend Inserter, logger *logging.Logger) *VisitorRecorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &VisitorRecorder{backend: backend, logger: logger, now: time.Now}
}

// Record inserts the visit. Failures are logged and swallowed.
func (r *VisitorRecorder) Record(ctx context.Context, v Visit, profile *Profile) {
	row := visitorRow{
		ID:          uuid.NewString(),
		Fingerprint: strings.TrimSpace(v.Fingerprint),
		UserAgent:   truncate(v.UserAgent, 512),
		Language:    v.Language,
		Screen:      v.Screen,
		Timezone:    v.Timezone,
		Referrer:    truncate(v.Referrer, 512),
		Page:        truncate(v.Page, 512),
		Platform:    "web",
		CreatedAt:   r.now().UTC(),
	}
	if profile != nil {
		id := profile.UserID
		row.Platform = profile.Platform
		row.TgUserID = &id
		row.TgUsername = profile.Username
		row.TgFirstName = profile.FirstName
		row.TgLastName = profile.LastName
		row.TgLanguageCode = profile.LanguageCode
		row.TgIsPremium = profile.IsPremium
	}
	if err := r.backend.Insert(ctx, TableVisitors, row, nil); err != nil {
		r.logger.Debug("analytics: visitor insert failed", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
