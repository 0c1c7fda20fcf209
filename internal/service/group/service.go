package group

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// Service implements group business logic.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a group service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Input holds the editable group fields.
type Input struct {
	Name        string
	Description string
}

func (in Input) build() (string, *string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	var desc *string
	if d := strings.TrimSpace(in.Description); d != "" {
		desc = &d
	}
	return name, desc, nil
}

// List returns all groups ordered by name.
func (s *Service) List(ctx context.Context) ([]domain.ContactGroup, error) {
	return s.repo.List(ctx)
}

// Create adds a group.
func (s *Service) Create(ctx context.Context, in Input) (*domain.ContactGroup, error) {
	name, desc, err := in.build()
	if err != nil {
		return nil, err
	}
	now := s.now()
	g := &domain.ContactGroup{ID: uuid.New().String(), Name: name, Description: desc, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}
	logger.Info("group created", "group_id", g.ID, "name", name)
	return g, nil
}

// Update renames a group or changes its description.
func (s *Service) Update(ctx context.Context, id string, in Input) (*domain.ContactGroup, error) {
	name, desc, err := in.build()
	if err != nil {
		return nil, err
	}
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Name, g.Description, g.UpdatedAt = name, desc, s.now()
	if err := s.repo.Update(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// AddMember puts an existing contact into an existing group. Adding a
// contact that is already a member succeeds.
func (s *Service) AddMember(ctx context.Context, groupID, contactID string) error {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return fmt.Errorf("%w: contactId is required", ErrInvalidInput)
	}
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return err
	}
	ok, err := s.repo.ContactExists(ctx, contactID)
	if err != nil {
		return fmt.Errorf("lookup contact: %w", err)
	}
	if !ok {
		return ErrContactNotFound
	}
	return s.repo.AddMember(ctx, groupID, contactID)
}

// Delete removes group id. With GroupDeleteMembers its member contacts are
// deleted too; with GroupMoveToDefault they are added to the default group,
// which is created when missing. Deleting the default group itself moves
// members to the fallback default group.
func (s *Service) Delete(ctx context.Context, id string, mode domain.GroupDeleteMode) error {
	err := s.repo.WithTx(ctx, func(tx Tx) error {
		members, err := tx.MemberContactIDs(ctx, id)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}

		if len(members) > 0 {
			switch mode {
			case domain.GroupDeleteMembers:
				if err := tx.DeleteContacts(ctx, members); err != nil {
					return fmt.Errorf("delete members: %w", err)
				}
			default:
				target, err := s.defaultGroup(ctx, tx, id)
				if err != nil {
					return err
				}
				if err := tx.AddMembers(ctx, target, members); err != nil {
					return fmt.Errorf("move members: %w", err)
				}
			}
		}

		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	logger.Info("group deleted", "group_id", id, "mode", string(mode))
	return nil
}

// defaultGroup returns the ID of the group members move to when group
// deletingID is deleted, creating it when needed.
func (s *Service) defaultGroup(ctx context.Context, tx Tx, deletingID string) (string, error) {
	name := domain.DefaultGroupName
	g, err := tx.FindByName(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("find default group: %w", err)
	}
	if g != nil && g.ID != deletingID {
		return g.ID, nil
	}
	if g != nil {
		name = domain.DefaultGroupFallbackName
		fallback, err := tx.FindByName(ctx, name)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("find fallback group: %w", err)
		}
		if fallback != nil {
			return fallback.ID, nil
		}
	}

	desc := domain.DefaultGroupDescription
	now := s.now()
	created := &domain.ContactGroup{ID: uuid.New().String(), Name: name, Description: &desc, CreatedAt: now, UpdatedAt: now}
	if err := tx.Create(ctx, created); err != nil {
		return "", fmt.Errorf("create default group: %w", err)
	}
	logger.Info("default group created", "group_id", created.ID, "name", name)
	return created.ID, nil
}
