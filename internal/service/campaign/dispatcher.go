package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/distlock"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/service/sending"
)

// NameToken is replaced in the campaign HTML with the contact's name.
const (
	NameToken    = "{{name}}"
	NameFallback = "there"
)

// Codec is the contact field codec used during dispatch.
type Codec interface {
	ValidateKey() error
	Encrypt(value string) (string, error)
	Decrypt(value string) (string, error)
	DecryptNullable(value *string) (*string, error)
}

// AttachmentResolver turns a persisted attachment list into files.
type AttachmentResolver interface {
	ResolveAll(ctx context.Context, raw string) ([]domain.File, error)
}

// extender is implemented by locks whose lease can be renewed.
type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// Outcome is the result of one delivery attempt: Delivered or Failed.
type Outcome interface {
	apply(r *domain.CampaignRecipient, at time.Time)
}

// Delivered is a transport success.
type Delivered struct{ MessageID string }

// Failed is a transport failure.
type Failed struct{ Reason string }

func (o Delivered) apply(r *domain.CampaignRecipient, at time.Time) {
	r.Status = domain.RecipientSent
	if o.MessageID != "" {
		id := o.MessageID
		r.MessageID = &id
	}
	r.SentAt = &at
}

func (o Failed) apply(r *domain.CampaignRecipient, _ time.Time) {
	r.Status = domain.RecipientFailed
	reason := o.Reason
	if reason == "" {
		reason = "Unknown error"
	}
	r.Error = &reason
}

// Dispatcher sends a campaign to its group. Safe for concurrent use; a
// second Dispatch of a campaign that is already in flight fails with
// ErrAlreadyDispatching.
type Dispatcher struct {
	repo     Repository
	codec    Codec
	sender   sending.Sender
	resolver AttachmentResolver
	locker   distlock.Locker
	from     string
	lockTTL  time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithSleep overrides the pacing wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// WithLockTTL sets the lease kept on extendable locks while a dispatch runs.
// The lease is renewed every third of ttl.
func WithLockTTL(ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.lockTTL = ttl }
}

// NewDispatcher creates a dispatcher sending from the given address. A nil
// locker falls back to a process-local registry.
func NewDispatcher(repo Repository, codec Codec, sender sending.Sender, resolver AttachmentResolver,
	locker distlock.Locker, from string, opts ...DispatcherOption) *Dispatcher {
	if locker == nil {
		locker = distlock.NewLocalLocker()
	}
	d := &Dispatcher{
		repo:     repo,
		codec:    codec,
		sender:   sender,
		resolver: resolver,
		locker:   locker,
		from:     strings.TrimSpace(from),
		lockTTL:  10 * time.Minute,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func lockKey(campaignID string) string { return "campaign-dispatch:" + campaignID }

// Dispatch sends campaign id to every current member of its group,
// whatever its status.
//
// Errors returned before the campaign is marked sending leave it untouched:
// ErrAlreadyDispatching, ErrNotFound, ErrMissingGroup, ErrConfiguration and
// attachment resolution errors. After that point only storage errors, ctx
// cancellation and ErrLeaseLost abort, leaving the campaign in sending with
// its processing marker set. Per-recipient delivery failures are recorded,
// not returned.
func (d *Dispatcher) Dispatch(ctx context.Context, id string) (*domain.DispatchResult, error) {
	return d.dispatch(ctx, id, false)
}

// DispatchDue is Dispatch for the scheduler sweep. The campaign is claimed
// with a conditional scheduled to sending transition; when another sweep
// got there first it returns ErrNotDue and sends nothing.
func (d *Dispatcher) DispatchDue(ctx context.Context, id string) (*domain.DispatchResult, error) {
	return d.dispatch(ctx, id, true)
}

func (d *Dispatcher) dispatch(ctx context.Context, id string, due bool) (*domain.DispatchResult, error) {
	lock := d.locker.NewLock(lockKey(id))
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !acquired {
		return nil, ErrAlreadyDispatching
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release dispatch lock failed", "campaign_id", id, "error", err)
		}
	}()
	ctx, stop := d.holdLease(ctx, lock, id)
	defer stop()

	c, err := d.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.GroupID == nil || *c.GroupID == "" {
		return nil, ErrMissingGroup
	}
	members, err := d.repo.ListMembers(ctx, *c.GroupID)
	if err != nil {
		return nil, err
	}

	if err := d.checkConfig(); err != nil {
		return nil, err
	}

	files, err := d.resolver.ResolveAll(ctx, c.AttachmentRaw)
	if err != nil {
		return nil, fmt.Errorf("resolve attachments: %w", err)
	}

	if due {
		claimed, err := d.repo.ClaimDue(ctx, c.ID, d.now())
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, ErrNotDue
		}
	} else if err := d.repo.MarkSending(ctx, c.ID, d.now()); err != nil {
		return nil, fmt.Errorf("mark sending: %w", err)
	}
	if err := d.repo.DeleteRecipients(ctx, c.ID); err != nil {
		return nil, fmt.Errorf("clear recipients: %w", err)
	}

	delay := StaggerDelay(c.SendMode, c.StaggerMinutes, len(members))
	logger.Info("campaign dispatch started",
		"campaign_id", c.ID, "members", len(members), "mode", string(c.SendMode), "delay", delay)

	res := &domain.DispatchResult{Results: []domain.RecipientResult{}}
	for i, m := range members {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("dispatch interrupted: %w", context.Cause(ctx))
		}
		rr, ok, err := d.processMember(ctx, c, m, files)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Results = append(res.Results, rr)
			if rr.Status == domain.RecipientSent {
				res.Sent++
			} else {
				res.Failed++
			}
		}

		if delay > 0 && i < len(members)-1 {
			if err := d.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("dispatch interrupted: %w", context.Cause(ctx))
			}
		}
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("dispatch interrupted: %w", context.Cause(ctx))
	}

	if err := d.repo.MarkSent(ctx, c.ID, d.now()); err != nil {
		return nil, fmt.Errorf("mark sent: %w", err)
	}
	logger.Info("campaign dispatch finished", "campaign_id", c.ID, "sent", res.Sent, "failed", res.Failed)

	d.sendFailureReport(ctx, c, res)
	return res, nil
}

func (d *Dispatcher) checkConfig() error {
	if d.from == "" {
		return fmt.Errorf("%w: sender address is missing", ErrConfiguration)
	}
	if d.sender == nil {
		return fmt.Errorf("%w: no delivery transport", ErrConfiguration)
	}
	if err := d.sender.Ready(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := d.codec.ValidateKey(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

// processMember delivers to one member and persists the outcome. ok is
// false when the member is skipped because its email is empty or cannot be
// decrypted. A non-nil error is a storage failure and aborts the dispatch.
func (d *Dispatcher) processMember(ctx context.Context, c *domain.Campaign, m domain.Membership, files []domain.File) (domain.RecipientResult, bool, error) {
	contact := m.Contact
	if contact == nil {
		return domain.RecipientResult{}, false, nil
	}

	email, err := d.codec.Decrypt(contact.Email)
	if err != nil {
		logger.Warn("skipping recipient with undecryptable email",
			"campaign_id", c.ID, "contact_id", contact.ID, "error", err)
		return domain.RecipientResult{}, false, nil
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.RecipientResult{}, false, nil
	}

	name := NameFallback
	if n, err := d.codec.DecryptNullable(contact.Name); err != nil {
		logger.Warn("contact name could not be decrypted, using fallback",
			"campaign_id", c.ID, "contact_id", contact.ID, "error", err)
	} else if n != nil && strings.TrimSpace(*n) != "" {
		name = *n
	}

	outcome := d.attempt(ctx, &domain.EmailMessage{
		From:        d.from,
		To:          email,
		Subject:     c.Subject,
		HTML:        strings.ReplaceAll(c.HTML, NameToken, name),
		Attachments: files,
	})

	encEmail, err := d.codec.Encrypt(email)
	if err != nil {
		return domain.RecipientResult{}, false, fmt.Errorf("encrypt recipient email: %w", err)
	}
	now := d.now()
	rec := &domain.CampaignRecipient{
		ID:         uuid.New().String(),
		CampaignID: c.ID,
		ContactID:  contact.ID,
		Email:      encEmail,
		CreatedAt:  now,
	}
	outcome.apply(rec, now)

	if err := d.repo.CreateRecipient(ctx, rec); err != nil {
		return domain.RecipientResult{}, false, fmt.Errorf("record recipient %s: %w", contact.ID, err)
	}

	rr := domain.RecipientResult{ID: rec.ID, Email: email, Status: rec.Status}
	if rec.Error != nil {
		rr.Error = *rec.Error
	}
	return rr, true, nil
}

// attempt folds a transport call into an Outcome.
func (d *Dispatcher) attempt(ctx context.Context, msg *domain.EmailMessage) Outcome {
	id, err := d.sender.Send(ctx, msg)
	if err != nil {
		logger.Warn("delivery failed", "recipient", msg.To, "error", err)
		return Failed{Reason: err.Error()}
	}
	return Delivered{MessageID: id}
}

// holdLease renews an extendable lock every third of lockTTL until stop is
// called. If the lock turns out to be held by someone else the returned
// context is cancelled with ErrLeaseLost so the dispatch stops sending.
func (d *Dispatcher) holdLease(ctx context.Context, lock distlock.DistLock, campaignID string) (context.Context, func()) {
	ext, ok := lock.(extender)
	interval := d.lockTTL / 3
	if !ok || interval <= 0 {
		return ctx, func() {}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := ext.Extend(ctx, d.lockTTL)
			switch {
			case err == nil:
			case errors.Is(err, distlock.ErrNotHeld):
				logger.Error("dispatch lock lost, stopping dispatch", "campaign_id", campaignID)
				cancel(ErrLeaseLost)
				return
			case ctx.Err() != nil:
				return
			default:
				logger.Warn("extend dispatch lock failed", "campaign_id", campaignID, "error", err)
			}
		}
	}()
	return ctx, func() {
		close(done)
		wg.Wait()
		cancel(nil)
	}
}

// sendFailureReport mails the digest when reporting is enabled. Errors are
// logged and never change the dispatch result.
func (d *Dispatcher) sendFailureReport(ctx context.Context, c *domain.Campaign, res *domain.DispatchResult) {
	if !c.SendFailureReport || c.FailureReportEmail == nil || *c.FailureReportEmail == "" {
		return
	}
	html, err := RenderFailureReport(c.Name, res)
	if err != nil {
		logger.Warn("failure report not sent", "campaign_id", c.ID, "error", err)
		return
	}
	_, err = d.sender.Send(ctx, &domain.EmailMessage{
		From:    d.from,
		To:      *c.FailureReportEmail,
		Subject: FailureReportSubject(c.Name),
		HTML:    html,
	})
	if err != nil {
		logger.Warn("failure report not sent", "campaign_id", c.ID, "recipient", *c.FailureReportEmail, "error", err)
	}
}
