package campaign

import (
	"context"
	"time"

	"github.com/ignite/mailroom/internal/domain"
)

// Repository defines the data access contract for campaigns and their
// recipient rows. Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns all campaigns, newest first, with group name and
	// recipient rows (emails still encrypted) populated.
	List(ctx context.Context) ([]domain.Campaign, error)

	// Create inserts a new campaign. The ID is assigned by the caller.
	Create(ctx context.Context, c *domain.Campaign) error

	// Delete removes a campaign and its recipients. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// ListDue returns the IDs of scheduled campaigns whose scheduled time is
	// at or before now, earliest first.
	ListDue(ctx context.Context, now time.Time) ([]string, error)

	// ListMembers returns the group's memberships with contacts loaded, in
	// membership order. Returns ErrMissingGroup if the group doesn't exist.
	ListMembers(ctx context.Context, groupID string) ([]domain.Membership, error)

	// MarkSending sets status sending and stamps processing_started_at.
	MarkSending(ctx context.Context, id string, at time.Time) error

	// ClaimDue moves a scheduled campaign to sending and stamps
	// processing_started_at. Returns false when the campaign is no longer
	// scheduled, e.g. another sweep already took it.
	ClaimDue(ctx context.Context, id string, at time.Time) (bool, error)

	// DeleteRecipients removes every recipient row of the campaign.
	DeleteRecipients(ctx context.Context, campaignID string) error

	// CreateRecipient inserts one recipient row. The ID is assigned by the caller.
	CreateRecipient(ctx context.Context, r *domain.CampaignRecipient) error

	// MarkSent sets status sent, stamps sent_at and clears processing_started_at.
	MarkSent(ctx context.Context, id string, at time.Time) error
}
