package user

import (
	"context"

	"github.com/ignite/mailroom/internal/domain"
)

// Repository defines the data access contract for application users.
type Repository interface {
	// List returns all users ordered by role, then username.
	List(ctx context.Context) ([]domain.AppUser, error)

	// Get returns one user. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.AppUser, error)

	// FindEnabledByUsername returns the enabled user with the given
	// username. Returns ErrNotFound otherwise.
	FindEnabledByUsername(ctx context.Context, username string) (*domain.AppUser, error)

	// Create inserts a user. Returns ErrDuplicateUser on a username or email clash.
	Create(ctx context.Context, u *domain.AppUser) error

	// Update rewrites display name, email, role, enabled and password hash.
	// Returns ErrNotFound or ErrDuplicateUser.
	Update(ctx context.Context, u *domain.AppUser) error
}
