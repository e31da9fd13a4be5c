// Package auth provides caller identity extraction for the HTTP surface:
// JWT validation against a provider's JWKS in production, and a header-based
// mode for local development. Every conversation and record operation is
// scoped by the user and team ids carried here.
package auth

import (
	"context"
	"fmt"
)

type contextKey string

const identityContextKey contextKey = "leadflow_identity"

// Identity is the validated caller identity attached to each request.
type Identity struct {
	// UserID is the subject claim, the owning user of conversations this
	// request creates.
	UserID string

	// TeamID is the tenant the caller acts within.
	TeamID string

	Email string
	Role  string
}

// Validate checks the identity carries both required ids.
func (i *Identity) Validate() error {
	if i.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if i.TeamID == "" {
		return fmt.Errorf("team id is required")
	}
	return nil
}

// IdentityFromContext returns the request identity, or nil outside the auth
// middleware.
func IdentityFromContext(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(identityContextKey).(*Identity); ok {
		return identity
	}
	return nil
}

// ContextWithIdentity attaches an identity to a context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
