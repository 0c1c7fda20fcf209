package campaign

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/attachment"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// fieldDecrypter is the part of the codec the service needs.
type fieldDecrypter interface {
	Decrypt(value string) (string, error)
}

// dispatcher is the part of Dispatcher the service needs.
type dispatcher interface {
	Dispatch(ctx context.Context, id string) (*domain.DispatchResult, error)
}

// Service implements campaign business logic around the Dispatcher.
type Service struct {
	repo       Repository
	codec      fieldDecrypter
	dispatcher dispatcher
	now        func() time.Time
}

// NewService creates a campaign service.
func NewService(repo Repository, codec fieldDecrypter, d dispatcher) *Service {
	return &Service{repo: repo, codec: codec, dispatcher: d, now: time.Now}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name               string
	Subject            string
	HTML               string
	GroupID            string
	TemplateID         string
	SendMode           string
	ScheduledFor       string
	StaggerMinutes     string
	SendFailureReport  bool
	FailureReportEmail string
	Attachments        []domain.Attachment
}

// CreateResult is the created campaign plus the dispatch result when the
// campaign was sent immediately.
type CreateResult struct {
	Campaign *domain.Campaign
	Dispatch *domain.DispatchResult
}

// scheduledLayouts are accepted for ScheduledFor; the zone-less form is UTC.
var scheduledLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// Create validates and persists a campaign. Scheduled campaigns are stored
// as scheduled; now and staggered campaigns are stored as draft and
// dispatched straight away. When that dispatch fails the campaign is
// still returned along with the error. The dispatch runs to completion even
// if ctx is cancelled.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	c, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	logger.Info("campaign created", "campaign_id", c.ID, "mode", string(c.SendMode), "status", string(c.Status))

	out := &CreateResult{Campaign: c}
	if c.SendMode == domain.SendScheduled {
		return out, nil
	}
	res, err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), c.ID)
	if err != nil {
		return out, err
	}
	out.Dispatch = res
	return out, nil
}

func (s *Service) build(in CreateInput) (*domain.Campaign, error) {
	name := strings.TrimSpace(in.Name)
	subject := strings.TrimSpace(in.Subject)
	if name == "" || subject == "" || strings.TrimSpace(in.HTML) == "" {
		return nil, fmt.Errorf("%w: name, subject and html are required", ErrInvalidInput)
	}

	now := s.now()
	mode := domain.NormalizeSendMode(in.SendMode)
	c := &domain.Campaign{
		ID:                uuid.New().String(),
		Name:              name,
		Subject:           subject,
		HTML:              in.HTML,
		SendMode:          mode,
		Status:            domain.CampaignDraft,
		SendFailureReport: in.SendFailureReport,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if id := strings.TrimSpace(in.GroupID); id != "" {
		c.GroupID = &id
	}
	if id := strings.TrimSpace(in.TemplateID); id != "" {
		c.TemplateID = &id
	}

	switch mode {
	case domain.SendScheduled:
		at, ok := parseScheduled(in.ScheduledFor)
		if !ok {
			return nil, fmt.Errorf("%w: a valid scheduled date/time is required", ErrInvalidInput)
		}
		if !at.After(now) {
			return nil, fmt.Errorf("%w: scheduled date/time must be in the future", ErrInvalidInput)
		}
		c.ScheduledFor = &at
		c.Status = domain.CampaignScheduled
	case domain.SendStaggered:
		m := ParseStaggerMinutes(in.StaggerMinutes)
		c.StaggerMinutes = &m
	}

	if report := strings.ToLower(strings.TrimSpace(in.FailureReportEmail)); report != "" {
		c.FailureReportEmail = &report
	}
	if c.SendFailureReport && c.FailureReportEmail == nil {
		return nil, fmt.Errorf("%w: failure report email is required when reporting is enabled", ErrInvalidInput)
	}

	raw, err := attachment.Marshal(in.Attachments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	c.AttachmentRaw = raw
	return c, nil
}

func parseScheduled(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range scheduledLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseStaggerMinutes reads the leading integer of s and clamps it to at
// least one minute.
func ParseStaggerMinutes(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || (end == 0 && (s[end] == '-' || s[end] == '+'))) {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns all campaigns, newest first, with recipient emails decrypted.
// A recipient email that cannot be decrypted is blanked.
func (s *Service) List(ctx context.Context) ([]domain.Campaign, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		for j := range items[i].Recipients {
			r := &items[i].Recipients[j]
			email, err := s.codec.Decrypt(r.Email)
			if err != nil {
				logger.Warn("recipient email could not be decrypted", "campaign_id", r.CampaignID, "recipient_id", r.ID, "error", err)
				email = ""
			}
			r.Email = email
		}
	}
	return items, nil
}

// Delete removes a campaign and its recipient rows.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Send dispatches an existing campaign. Once started the dispatch is not
// tied to ctx, so a caller that goes away does not strand it half sent.
func (s *Service) Send(ctx context.Context, id string) (*domain.DispatchResult, error) {
	return s.dispatcher.Dispatch(context.WithoutCancel(ctx), id)
}
