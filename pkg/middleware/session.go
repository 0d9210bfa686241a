package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pr-poehali-dev/zdrav-project/pkg/logger"
)

// DefaultSessionCookie is the cookie that carries the storefront session ID.
const DefaultSessionCookie = "storefront_session"

// SessionConfig configures the Session middleware.
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Session binds every request to an anonymous browser session. The ID is read
// from the session cookie; a missing or malformed cookie gets a fresh UUID.
// The cookie is re-issued on every response so its lifetime slides with
// activity. The ID is stored via logger.WithSessionID and tagged on the
// current span.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookie
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.New().String()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("storefront.session_id", id))

			ctx := logger.WithSessionID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext returns the session ID installed by Session, or "".
func SessionIDFromContext(ctx context.Context) string {
	return logger.SessionIDFromContext(ctx)
}
