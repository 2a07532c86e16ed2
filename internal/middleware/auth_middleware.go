package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"versioned-notes-server/pkg/response"
)

type contextKey string

const EmailKey contextKey = "email"

// Authenticator turns a bearer token into the identity it was issued for.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			email, err := auth.Authenticate(token)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("identity", email)
			})

			ctx := context.WithValue(r.Context(), EmailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetEmail(r *http.Request) string {
	email, ok := r.Context().Value(EmailKey).(string)
	if !ok {
		return ""
	}
	return email
}
