package template

import (
	"context"

	"github.com/ignite/mailroom/internal/domain"
)

// Repository defines the data access contract for email templates.
type Repository interface {
	// List returns all templates, newest first.
	List(ctx context.Context) ([]domain.EmailTemplate, error)

	// Get returns one template. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.EmailTemplate, error)

	// ExistsByName reports whether any template carries the given name.
	ExistsByName(ctx context.Context, name string) (bool, error)

	// Create inserts a template. The ID is assigned by the caller.
	Create(ctx context.Context, t *domain.EmailTemplate) error

	// Update rewrites every editable field. Returns ErrNotFound if it doesn't exist.
	Update(ctx context.Context, t *domain.EmailTemplate) error

	// Delete removes a template. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error
}
