package contact

import (
	"context"

	"github.com/ignite/mailroom/internal/domain"
)

// Repository defines the data access contract for contacts. Every text
// field it stores or returns is already encrypted.
type Repository interface {
	// List returns all contacts, newest first, with Groups populated.
	List(ctx context.Context) ([]domain.Contact, error)

	// Get returns one contact with Groups populated. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Contact, error)

	// FindByLookup returns the contact whose email_hash equals hash, or whose
	// stored email equals the plaintext address (rows written before
	// encryption). Returns ErrNotFound if none matches.
	FindByLookup(ctx context.Context, hash, email string) (*domain.Contact, error)

	// Create inserts a contact. The ID is assigned by the caller.
	Create(ctx context.Context, c *domain.Contact) error

	// Update rewrites email, email_hash, name, company and tags. Returns
	// ErrNotFound if the contact doesn't exist and ErrDuplicateEmail when the
	// hash belongs to another contact.
	Update(ctx context.Context, c *domain.Contact) error

	// GroupExists reports whether a group with the given ID exists.
	GroupExists(ctx context.Context, groupID string) (bool, error)

	// AddToGroup creates the membership if it doesn't exist yet.
	AddToGroup(ctx context.Context, contactID, groupID string) error

	// DeleteMany removes the given contacts and returns how many existed.
	DeleteMany(ctx context.Context, ids []string) (int, error)

	// ListRecipientEmails returns the id and stored email of every campaign recipient row.
	ListRecipientEmails(ctx context.Context) ([]RecipientEmail, error)

	// UpdateRecipientEmail rewrites one recipient row's stored email.
	UpdateRecipientEmail(ctx context.Context, id, email string) error
}

// RecipientEmail is a campaign recipient row reduced to what rekey needs.
type RecipientEmail struct {
	ID    string
	Email string
}
