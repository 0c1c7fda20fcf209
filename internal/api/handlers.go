package api

import (
	"context"

	"github.com/ignite/mailroom/internal/attachment"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/campaign"
	"github.com/ignite/mailroom/internal/service/contact"
	"github.com/ignite/mailroom/internal/service/group"
	"github.com/ignite/mailroom/internal/service/template"
	"github.com/ignite/mailroom/internal/service/user"
)

// CampaignService is the campaign surface the handlers use.
type CampaignService interface {
	Create(ctx context.Context, in campaign.CreateInput) (*campaign.CreateResult, error)
	List(ctx context.Context) ([]domain.Campaign, error)
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	Delete(ctx context.Context, id string) error
	Send(ctx context.Context, id string) (*domain.DispatchResult, error)
}

// DueSweeper runs the due-campaign sweep.
type DueSweeper interface {
	ProcessDue(ctx context.Context) (*domain.SweepResult, error)
}

// ContactService is the contact surface the handlers use.
type ContactService interface {
	Save(ctx context.Context, in contact.SaveInput) (*domain.Contact, error)
	Update(ctx context.Context, id string, in contact.SaveInput) (*domain.Contact, error)
	List(ctx context.Context) ([]domain.Contact, error)
	DeleteMany(ctx context.Context, ids []string) (int, error)
	Rekey(ctx context.Context) (*contact.RekeyResult, error)
}

// GroupService is the group surface the handlers use.
type GroupService interface {
	List(ctx context.Context) ([]domain.ContactGroup, error)
	Create(ctx context.Context, in group.Input) (*domain.ContactGroup, error)
	Update(ctx context.Context, id string, in group.Input) (*domain.ContactGroup, error)
	AddMember(ctx context.Context, groupID, contactID string) error
	Delete(ctx context.Context, id string, mode domain.GroupDeleteMode) error
}

// TemplateService is the template surface the handlers use.
type TemplateService interface {
	List(ctx context.Context) ([]domain.EmailTemplate, error)
	Get(ctx context.Context, id string) (*domain.EmailTemplate, error)
	Create(ctx context.Context, in template.Input) (*domain.EmailTemplate, error)
	Update(ctx context.Context, id string, in template.Input) (*domain.EmailTemplate, error)
	Delete(ctx context.Context, id string) error
}

// UserService is the admin user surface the handlers use.
type UserService interface {
	List(ctx context.Context) ([]domain.AppUser, error)
	Create(ctx context.Context, in user.Input) (*domain.AppUser, error)
	Update(ctx context.Context, id string, in user.Input) (*domain.AppUser, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	campaigns CampaignService
	sweeper   DueSweeper
	contacts  ContactService
	groups    GroupService
	templates TemplateService
	users     UserService
	uploads   attachment.UploadStore
	health    *HealthChecker
}

// Deps lists the services the handlers are built from.
type Deps struct {
	Campaigns CampaignService
	Sweeper   DueSweeper
	Contacts  ContactService
	Groups    GroupService
	Templates TemplateService
	Users     UserService
	Uploads   attachment.UploadStore
	Health    *HealthChecker
}

// NewHandlers creates a new Handlers instance
func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		campaigns: d.Campaigns,
		sweeper:   d.Sweeper,
		contacts:  d.Contacts,
		groups:    d.Groups,
		templates: d.Templates,
		users:     d.Users,
		uploads:   d.Uploads,
		health:    d.Health,
	}
}
