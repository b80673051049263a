package api

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/avylis/leadchat/internal/session"
)

const (
	// SessionCookieName carries the session ID across widget requests.
	SessionCookieName = "leadchat_session"
	// SessionHeaderName lets API clients thread a session explicitly; it
	// overrides the cookie.
	SessionHeaderName = "X-Chat-Session-ID"

	sessionCookieMaxAge = 24 * time.Hour
)

type contextKey int

const sessionIDKey contextKey = iota

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// SessionIDFromContext extracts the session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionMiddleware resolves the request's chat session ID. Precedence:
// explicit header, then cookie, then a freshly minted ID (set back as a
// cookie so a stateless widget still gets a continuous session).
func SessionMiddleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sanitizeSessionID(r.Header.Get(SessionHeaderName))
			if id == "" {
				if c, err := r.Cookie(SessionCookieName); err == nil {
					id = sanitizeSessionID(c.Value)
				}
			}
			if id == "" {
				id = session.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(sessionCookieMaxAge.Seconds()),
					Expires:  time.Now().Add(sessionCookieMaxAge),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Secure:   !isDev,
				})
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return ""
	}
	return id
}
