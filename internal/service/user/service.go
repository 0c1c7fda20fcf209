package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// Service implements admin user management.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Input holds the admin-editable user fields. Enabled defaults to true;
// an empty Password leaves the current password unchanged on update.
type Input struct {
	Username    string
	DisplayName string
	Email       string
	Role        string
	Enabled     *bool
	Password    string
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (in Input) apply(u *domain.AppUser) error {
	u.DisplayName = optional(strings.TrimSpace(in.DisplayName))
	u.Email = optional(strings.ToLower(strings.TrimSpace(in.Email)))
	u.Role = domain.ParseRole(in.Role)
	u.Enabled = in.Enabled == nil || *in.Enabled
	if pw := strings.TrimSpace(in.Password); pw != "" {
		hash, err := HashPassword(pw)
		if err != nil {
			return err
		}
		u.LocalPasswordHash = &hash
	}
	return nil
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]domain.AppUser, error) {
	return s.repo.List(ctx)
}

// Create adds a user.
func (s *Service) Create(ctx context.Context, in Input) (*domain.AppUser, error) {
	username := NormalizeUsername(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	now := s.now()
	u := &domain.AppUser{ID: uuid.New().String(), Username: username, CreatedAt: now, UpdatedAt: now}
	if err := in.apply(u); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	logger.Info("user created", "user_id", u.ID, "username", username, "role", string(u.Role))
	return u, nil
}

// Update changes a user's profile, role, enabled flag and optionally password.
// The username is immutable.
func (s *Service) Update(ctx context.Context, id string, in Input) (*domain.AppUser, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	logger.Info("user updated", "user_id", u.ID, "role", string(u.Role), "enabled", u.Enabled)
	return u, nil
}

// Authenticate returns the enabled user whose local password matches.
// It returns ErrNotFound for unknown, disabled or password-less users and
// for a wrong password alike.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.AppUser, error) {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, ErrNotFound
	}
	u, err := s.repo.FindEnabledByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !u.HasLocalPassword() || !VerifyPassword(password, *u.LocalPasswordHash) {
		return nil, ErrNotFound
	}
	return u, nil
}

// Resolve returns the enabled user for an identity provider username.
func (s *Service) Resolve(ctx context.Context, username string) (*domain.AppUser, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, ErrNotFound
	}
	return s.repo.FindEnabledByUsername(ctx, username)
}

// Current reloads a user by ID for session refresh. Disabled users are ErrNotFound.
func (s *Service) Current(ctx context.Context, id string) (*domain.AppUser, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Enabled {
		return nil, ErrNotFound
	}
	return u, nil
}
