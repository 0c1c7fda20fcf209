package group

import (
	"context"

	"github.com/ignite/mailroom/internal/domain"
)

// Repository defines the data access contract for contact groups.
type Repository interface {
	// List returns all groups ordered by name with MemberCount populated.
	List(ctx context.Context) ([]domain.ContactGroup, error)

	// Get returns one group with MemberCount populated. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.ContactGroup, error)

	// Create inserts a group. Returns ErrDuplicateName on a name clash.
	Create(ctx context.Context, g *domain.ContactGroup) error

	// Update rewrites name and description. Returns ErrNotFound or ErrDuplicateName.
	Update(ctx context.Context, g *domain.ContactGroup) error

	// ContactExists reports whether a contact with the given ID exists.
	ContactExists(ctx context.Context, contactID string) (bool, error)

	// AddMember creates the membership if it doesn't exist yet.
	AddMember(ctx context.Context, groupID, contactID string) error

	// WithTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations used by group deletion.
type Tx interface {
	// MemberContactIDs returns the distinct contact IDs in the group.
	MemberContactIDs(ctx context.Context, groupID string) ([]string, error)

	// DeleteContacts removes the given contacts and their memberships.
	DeleteContacts(ctx context.Context, ids []string) error

	// FindByName returns the group with the given name. Returns ErrNotFound if none.
	FindByName(ctx context.Context, name string) (*domain.ContactGroup, error)

	// Create inserts a group.
	Create(ctx context.Context, g *domain.ContactGroup) error

	// AddMembers adds every contact to the group, skipping existing memberships.
	AddMembers(ctx context.Context, groupID string, contactIDs []string) error

	// Delete removes the group and its memberships. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error
}
