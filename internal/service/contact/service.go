package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/security"
)

// Codec is the contact field codec.
type Codec interface {
	Encrypt(value string) (string, error)
	Decrypt(value string) (string, error)
	EncryptNullable(value *string) (*string, error)
	DecryptNullable(value *string) (*string, error)
	LookupHash(email string) (string, error)
}

// Service implements contact business logic. It is safe for concurrent use.
type Service struct {
	repo  Repository
	codec Codec
	now   func() time.Time
}

// NewService creates a contact service.
func NewService(repo Repository, codec Codec) *Service {
	return &Service{repo: repo, codec: codec, now: time.Now}
}

// SaveInput holds the editable contact fields.
type SaveInput struct {
	Email   string
	Name    string
	Company string
	GroupID string
}

func (in SaveInput) normalize() SaveInput {
	return SaveInput{
		Email:   security.NormalizeEmail(in.Email),
		Name:    strings.TrimSpace(in.Name),
		Company: strings.TrimSpace(in.Company),
		GroupID: strings.TrimSpace(in.GroupID),
	}
}

// Save creates a contact or, when the address is already known, overwrites
// its email, name and company. When GroupID names an existing group the
// contact is added to it; an unknown group is ignored.
func (s *Service) Save(ctx context.Context, in SaveInput) (*domain.Contact, error) {
	in = in.normalize()
	if in.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	hash, err := s.codec.LookupHash(in.Email)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByLookup(ctx, hash, in.Email)
	switch {
	case errors.Is(err, ErrNotFound):
		existing = nil
	case err != nil:
		return nil, fmt.Errorf("find contact: %w", err)
	}

	c := &domain.Contact{ID: uuid.New().String(), CreatedAt: s.now()}
	if existing != nil {
		c = existing
	}
	if err := s.seal(c, in, hash); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()

	if existing != nil {
		err = s.repo.Update(ctx, c)
	} else {
		err = s.repo.Create(ctx, c)
	}
	if err != nil {
		return nil, fmt.Errorf("save contact: %w", err)
	}

	if in.GroupID != "" {
		ok, err := s.repo.GroupExists(ctx, in.GroupID)
		if err != nil {
			return nil, fmt.Errorf("lookup group: %w", err)
		}
		if ok {
			if err := s.repo.AddToGroup(ctx, c.ID, in.GroupID); err != nil {
				return nil, fmt.Errorf("add to group: %w", err)
			}
		}
	}

	logger.Info("contact saved", "contact_id", c.ID, "created", existing == nil)
	return s.load(ctx, c.ID)
}

// Update replaces the email, name and company of contact id. Returns
// ErrDuplicateEmail when the new address belongs to another contact.
func (s *Service) Update(ctx context.Context, id string, in SaveInput) (*domain.Contact, error) {
	in = in.normalize()
	if in.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	hash, err := s.codec.LookupHash(in.Email)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.seal(c, in, hash); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// seal writes the encrypted form of in onto c. Tags are left as they are.
func (s *Service) seal(c *domain.Contact, in SaveInput, hash string) error {
	email, err := s.codec.Encrypt(in.Email)
	if err != nil {
		return err
	}
	name, err := s.codec.EncryptNullable(&in.Name)
	if err != nil {
		return err
	}
	company, err := s.codec.EncryptNullable(&in.Company)
	if err != nil {
		return err
	}
	c.Email, c.EmailHash, c.Name, c.Company = email, hash, name, company
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.open(c)
	return c, nil
}

// List returns all contacts with fields decrypted, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Contact, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	for i := range items {
		s.open(&items[i])
	}
	return items, nil
}

// open decrypts c in place. A field that fails to decrypt is blanked and
// logged so one damaged row cannot hide the rest.
func (s *Service) open(c *domain.Contact) {
	email, err := s.codec.Decrypt(c.Email)
	if err != nil {
		logger.Warn("contact email could not be decrypted", "contact_id", c.ID, "error", err)
	}
	c.Email = email

	for _, field := range []**string{&c.Name, &c.Company, &c.Tags} {
		v, err := s.codec.DecryptNullable(*field)
		if err != nil {
			logger.Warn("contact field could not be decrypted", "contact_id", c.ID, "error", err)
		}
		*field = v
	}
}

// DeleteMany removes contacts by ID and reports how many were deleted.
// Blank IDs are dropped; an empty list is ErrInvalidInput.
func (s *Service) DeleteMany(ctx context.Context, ids []string) (int, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return 0, fmt.Errorf("%w: no contact ids provided", ErrInvalidInput)
	}
	n, err := s.repo.DeleteMany(ctx, clean)
	if err != nil {
		return 0, fmt.Errorf("delete contacts: %w", err)
	}
	logger.Info("contacts deleted", "requested", len(clean), "deleted", n)
	return n, nil
}
