// Package session carries the anonymous visitor session id and the
// short-lived per-session state stores (wizard drafts, carts, chat
// transcripts).
package session

import (
	"context"

	"github.com/google/uuid"
)

const (
	// HeaderName carries the session id from the site frontend.
	HeaderName = "X-Session-Id"
	// CookieName is the fallback when the header is absent.
	CookieName = "clinic_sid"
)

type ctxKey struct{}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// WithID stores the session id in ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the session id placed by the session middleware.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Valid reports whether id looks like a session id we issued.
func Valid(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
