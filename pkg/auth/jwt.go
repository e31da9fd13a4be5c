package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// JWTValidator validates bearer tokens against an external identity
// provider. The provider's JWKS is fetched once at construction and
// auto-refreshed to handle key rotation.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// NewJWTValidator creates a validator for the given JWKS endpoint. The
// initial fetch runs here so a misconfigured URL fails at startup, not on
// the first request.
func NewJWTValidator(jwksURL, issuer, audience string) (*JWTValidator, error) {
	ctx := context.Background()

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}

	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	return &JWTValidator{
		jwksURL:  jwksURL,
		cache:    cache,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// ValidateToken verifies the token's signature, expiry, issuer, and
// audience, and projects its claims onto an Identity. The team comes from
// the "team_id" claim.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Identity, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	options := []jwt.ParseOption{
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), options...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	identity := &Identity{UserID: token.Subject()}

	if teamID, ok := token.Get("team_id"); ok {
		if s, ok := teamID.(string); ok {
			identity.TeamID = s
		}
	}
	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			identity.Email = s
		}
	}
	if role, ok := token.Get("role"); ok {
		if s, ok := role.(string); ok {
			identity.Role = s
		}
	}

	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("token missing required claims: %w", err)
	}

	return identity, nil
}
