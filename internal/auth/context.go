// Package auth provides authentication context helpers.
//
// This package is imported by both the middleware and handler packages
// without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/packs/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	userContextKey   contextKey = "user"
	holderContextKey contextKey = "user_holder"
)

// UserHolder lets middleware that runs before authentication see the
// user once an inner handler has loaded it.
type UserHolder struct {
	User *domain.User
}

// WithUserHolder attaches h to ctx. SetUser calls below it fill it in.
func WithUserHolder(ctx context.Context, h *UserHolder) context.Context {
	return context.WithValue(ctx, holderContextKey, h)
}

// GetUser retrieves the authenticated user from the context.
//
// Returns nil if no user is authenticated.
//
//	user := auth.GetUser(r.Context())
//	if user == nil {
//	    // Handle unauthenticated request
//	}
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest retrieves the authenticated user from the request context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// SetUser stores a user in the context.
//
// This is called by the authentication middleware after validating a
// session token.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	if h, ok := ctx.Value(holderContextKey).(*UserHolder); ok {
		h.User = user
	}
	return context.WithValue(ctx, userContextKey, user)
}
