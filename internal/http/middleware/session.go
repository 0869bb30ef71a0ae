package middleware

import (
	"net/http"
	"time"

	"github.com/smiledent/clinic-site/internal/session"
)

// Session attaches the visitor's session id to the request context. The id
// comes from the X-Session-Id header or the session cookie; a missing or
// malformed id is replaced with a fresh one that is echoed back in both.
func Session(ttl time.Duration, secure bool) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(session.HeaderName)
			if !session.Valid(id) {
				id = ""
				if c, err := r.Cookie(session.CookieName); err == nil && session.Valid(c.Value) {
					id = c.Value
				}
			}
			if id == "" {
				id = session.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     session.CookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(session.HeaderName, id)
			next.ServeHTTP(w, r.WithContext(session.WithID(r.Context(), id)))
		})
	}
}
