// Package store persists local user accounts. Three backends share one
// interface: an in-memory map for tests and ephemeral deployments, a JSON
// file with periodic flushing, and Postgres.
package store

import (
	"context"
	"strings"
	"time"
)

// UserRecord is a local account row. UID is the 32-bit local identifier that
// widens into a UserRef.
type UserRecord struct {
	UID          uint32    `json:"uid"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the persistence contract for local accounts.
//
// Username and email lookups are case-insensitive; the stored spelling is
// preserved. Create enforces uniqueness and the capacity cap and returns the
// record with its assigned uid. Absent users surface as fop.ErrUserNotFound.
type Store interface {
	Create(ctx context.Context, rec UserRecord) (UserRecord, error)
	FindByUID(ctx context.Context, uid uint32) (UserRecord, error)
	FindByUsername(ctx context.Context, username string) (UserRecord, error)
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	UpdatePassword(ctx context.Context, uid uint32, passwordHash string) error
	Count(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// fold is the case-insensitivity rule shared by all backends.
func fold(s string) string {
	return strings.ToLower(s)
}
