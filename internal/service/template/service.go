package template

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// Service implements template business logic.
type Service struct {
	repo   Repository
	engine *liquid.Engine
	now    func() time.Time
}

// NewService creates a template service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, engine: liquid.NewEngine(), now: time.Now}
}

// Input holds the editable template fields.
type Input struct {
	Name        string
	Description string
	Subject     string
	HTML        string
	DesignJSON  string
}

func (in Input) apply(t *domain.EmailTemplate) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	t.Name = name
	t.Subject = in.Subject
	t.HTML = in.HTML
	t.Description = optional(in.Description)
	t.DesignJSON = optional(in.DesignJSON)
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// EnsureDefaults inserts every built-in template whose name is not taken yet.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	for _, sd := range defaultSeeds {
		exists, err := s.repo.ExistsByName(ctx, sd.name)
		if err != nil {
			return fmt.Errorf("check default template: %w", err)
		}
		if exists {
			continue
		}
		html, err := renderSeed(s.engine, sd)
		if err != nil {
			return err
		}
		now := s.now()
		desc := sd.description
		t := &domain.EmailTemplate{
			ID: uuid.New().String(), Name: sd.name, Description: &desc,
			Subject: sd.subject, HTML: html, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, t); err != nil {
			return fmt.Errorf("create default template: %w", err)
		}
		logger.Info("default template seeded", "template_id", t.ID, "name", sd.name)
	}
	return nil
}

// List seeds the defaults and returns all templates, newest first.
func (s *Service) List(ctx context.Context) ([]domain.EmailTemplate, error) {
	if err := s.EnsureDefaults(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Get returns one template.
func (s *Service) Get(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a template.
func (s *Service) Create(ctx context.Context, in Input) (*domain.EmailTemplate, error) {
	now := s.now()
	t := &domain.EmailTemplate{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	if err := in.apply(t); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// Update replaces every editable field of template id.
func (s *Service) Update(ctx context.Context, id string, in Input) (*domain.EmailTemplate, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes template id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
