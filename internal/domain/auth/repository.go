package auth

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	// SharesOrganisation reports whether both users belong to at least one common organisation.
	SharesOrganisation(ctx context.Context, userID, otherID string) (bool, error)
}
