// Package identity reads and updates the accounts the gateway authenticates
// against. The users table is owned by the user service; the gateway only
// reads credentials and rewrites password hashes.
package identity

import (
	"context"

	"github.com/utafrali/EcommerceGo/authgateway/internal/domain"
)

// Repository is the identity source.
type Repository interface {
	// GetByPhone returns the account registered with phone.
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)

	// GetByID returns the account with id.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// UpdatePassword replaces the account's password hash.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
