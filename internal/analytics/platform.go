package analytics

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoPlatform       = errors.New("analytics: not inside an embedded platform")
	ErrInvalidSignature = errors.New("analytics: init data signature mismatch")
	ErrExpiredInitData  = errors.New("analytics: init data expired")
)

// Profile is the messaging-platform user the site was opened by.
type Profile struct {
	Platform     string `json:"platform"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// PlatformContext resolves the embedded-browser profile from the launch
// parameters the platform passes to the page.
type PlatformContext interface {
	Name() string
	Profile(initData string) (*Profile, error)
}

// NoPlatform is used when the site is opened in a regular browser.
type NoPlatform struct{}

func (NoPlatform) Name() string { return "web" }

func (NoPlatform) Profile(string) (*Profile, error) { return nil, ErrNoPlatform }

// TelegramWebApp verifies Telegram Mini App initData with the bot token.
type TelegramWebApp struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

// NewTelegramWebApp returns NoPlatform when token is empty.
func NewTelegramWebApp(botToken string, maxAge time.Duration) PlatformContext {
	if botToken == "" {
		return NoPlatform{}
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &TelegramWebApp{botToken: botToken, maxAge: maxAge, now: time.Now}
}

func (t *TelegramWebApp) Name() string { return "telegram" }

type telegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	IsPremium    bool   `json:"is_premium"`
}

// Profile checks the initData hash and auth_date and extracts the user.
func (t *TelegramWebApp) Profile(initData string) (*Profile, error) {
	if initData == "" {
		return nil, ErrNoPlatform
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("analytics: parse init data: %w", err)
	}
	hash := values.Get("hash")
	if hash == "" || !hmac.Equal([]byte(hash), []byte(SignTelegramInitData(values, t.botToken))) {
		return nil, ErrInvalidSignature
	}
	if ts, err := strconv.ParseInt(values.Get("auth_date"), 10, 64); err != nil || t.now().Sub(time.Unix(ts, 0)) > t.maxAge {
		return nil, ErrExpiredInitData
	}

	var u telegramUser
	if raw := values.Get("user"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("analytics: decode user: %w", err)
		}
	}
	return &Profile{
		Platform:     t.Name(),
		UserID:       u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
		IsPremium:    u.IsPremium,
	}, nil
}

// SignTelegramInitData computes the hex hash Telegram attaches to initData.
func SignTelegramInitData(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
