package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/leadflowhq/leadflow/pkg/config"
)

// Validator turns a bearer token into an identity.
type Validator interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
}

// Middleware builds the identity-extraction middleware for the configured
// mode. With auth enabled it validates bearer tokens against the JWKS
// endpoint; disabled, it trusts X-User-ID and X-Team-ID headers, which is
// only suitable for local development.
func Middleware(cfg *config.AuthConfig) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return headerIdentity, nil
	}

	validator, err := NewJWTValidator(cfg.JWKSURL, cfg.Issuer, cfg.Audience)
	if err != nil {
		return nil, err
	}
	return TokenMiddleware(validator), nil
}

// TokenMiddleware rejects requests without a valid bearer token and
// attaches the validated identity to the request context. Rejections are
// plain JSON errors; they happen before any streaming begins.
func TokenMiddleware(validator Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "missing Authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeAuthError(w, "invalid Authorization format, expected: Bearer <token>")
				return
			}

			identity, err := validator.ValidateToken(r.Context(), tokenString)
			if err != nil {
				writeAuthError(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// headerIdentity reads the identity from request headers without
// validation.
func headerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := &Identity{
			UserID: r.Header.Get("X-User-ID"),
			TeamID: r.Header.Get("X-Team-ID"),
		}
		if err := identity.Validate(); err != nil {
			writeAuthError(w, "missing X-User-ID or X-Team-ID header")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
