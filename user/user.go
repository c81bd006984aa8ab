// Package user defines the collaborator interfaces toward the user store.
// Account persistence itself lives outside the trust-token core; the core
// only needs to look users up and to verify login credentials.
package user

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user exists for the given id.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Info describes a user as known to the registry.
type Info struct {
	UserID string
	Roles  []string

	// TokenTTL overrides the global session token time-to-live for this
	// user when set.
	TokenTTL *time.Duration
}

// Registry looks up user information for session token minting and
// refresh.
type Registry interface {
	// UserInfo returns the user's current roles and token settings, or
	// ErrNotFound if the user does not exist.
	UserInfo(ctx context.Context, userID string) (*Info, error)
}

// IdentityStore verifies login credentials.
type IdentityStore interface {
	// Verify checks the given credentials and returns the user's info on
	// success. It returns ErrNotFound for unknown users and
	// ErrInvalidCredentials for a wrong password.
	Verify(ctx context.Context, userID, password string) (*Info, error)
}
