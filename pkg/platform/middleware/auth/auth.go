package auth

import (
	"context"
	"log/slog"
	"net/http"

	"spamgate/pkg/requestcontext"
)

// SessionValidator validates a session cookie value.
type SessionValidator interface {
	ValidateSession(token string) (*Claims, error)
}

// Claims represents what a valid session tells the handlers about the user.
type Claims struct {
	UserID   string
	Username string
}

type contextKeyUserID struct{}
type contextKeyUsername struct{}

// GetUserID retrieves the signed-in user ID from the context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(contextKeyUserID{}).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetUsername retrieves the signed-in username from the context.
func GetUsername(ctx context.Context) string {
	username, ok := ctx.Value(contextKeyUsername{}).(string)
	if !ok {
		return ""
	}
	return username
}

// WithClaims injects a session into a context.
// Useful for handler unit tests that don't run the full middleware chain.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, contextKeyUserID{}, claims.UserID)
	return context.WithValue(ctx, contextKeyUsername{}, claims.Username)
}

// LoadSession reads the session cookie and, when it validates, puts the user
// in the request context. Anonymous requests pass through untouched; an
// invalid cookie is cleared.
func LoadSession(validator SessionValidator, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			claims, err := validator.ValidateSession(cookie.Value)
			if err != nil {
				logger.DebugContext(ctx, "discarding invalid session cookie",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    "",
					Path:     "/",
					MaxAge:   -1,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}
