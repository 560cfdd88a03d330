package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	// Create saves a new user. Returns ErrEmailExists or ErrUsernameExists
	// on unique constraint collisions.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID. Returns ErrUserNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByUsername retrieves a user by username. Returns ErrUserNotFound
	// if absent.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}
