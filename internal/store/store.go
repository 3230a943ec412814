// ABOUTME: Store interface and data types for auth-gateway persistence
// ABOUTME: Defines the User entity and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Role is a user's local authorization role. Roles are assigned
// out-of-band; tokens never carry them.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User represents a locally-reconciled identity from the upstream
// provider. Created on first login, updated on every subsequent one,
// never deleted.
type User struct {
	ID           string  // surrogate UUID
	ExternalID   string  // provider subject id, unique and immutable
	Email        string  // best effort, may be empty
	RefreshToken *string // nil when no session is active
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store defines the interface for user persistence
type Store interface {
	// GetUserByExternalID returns the user with the given provider
	// subject id, or ErrNotFound.
	GetUserByExternalID(ctx context.Context, externalID string) (*User, error)

	// GetUserByRefreshToken returns the user holding the given refresh
	// token, or ErrNotFound. The empty token never matches.
	GetUserByRefreshToken(ctx context.Context, token string) (*User, error)

	// UpsertUser atomically creates or updates the user keyed by
	// externalID, always overwriting email and refresh token. The bool
	// reports whether a new record was created.
	UpsertUser(ctx context.Context, externalID, email, refreshToken string) (*User, bool, error)

	// ClearRefreshToken ends the user's session by nulling the refresh
	// token. Clearing an already-cleared token succeeds.
	ClearRefreshToken(ctx context.Context, externalID string) error

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}
