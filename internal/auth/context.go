// ABOUTME: Request-scoped identity propagation via context
// ABOUTME: Provides WithIdentity/FromContext for handlers downstream of the gate

package auth

import (
	"context"
)

// Identity is the resolved local identity of an authenticated request.
// It is attached to the request context by the RequestGate and is the only
// way handlers learn who is calling.
type Identity struct {
	UserID     string // local user row id
	ExternalID string // provider subject id
	Email      string
	Role       string // "member" | "admin"
}

// IsAdmin returns true if the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i.Role == "admin"
}

// identityKey is the key type for storing an Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if
// the request was not authenticated.
func FromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok {
		return nil
	}
	return id
}
