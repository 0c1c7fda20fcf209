package campaign_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/security"
	"github.com/ignite/mailroom/internal/service/campaign"
	"github.com/ignite/mailroom/internal/service/sending"
)

// memRepo is an in-memory campaign repository for unit testing.
type memRepo struct {
	mu         sync.Mutex
	campaigns  map[string]*domain.Campaign
	members    map[string][]domain.Membership // keyed by group id
	recipients map[string][]domain.CampaignRecipient

	failCreateRecipient error
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns:  make(map[string]*domain.Campaign),
		members:    make(map[string][]domain.Membership),
		recipients: make(map[string][]domain.CampaignRecipient),
	}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		cp := *c
		cp.Recipients = append([]domain.CampaignRecipient(nil), m.recipients[c.ID]...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(m.campaigns, id)
	delete(m.recipients, id)
	return nil
}

func (m *memRepo) ListDue(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*domain.Campaign
	for _, c := range m.campaigns {
		if c.IsDue(now) {
			due = append(due, c)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(*due[j].ScheduledFor) })
	ids := make([]string, len(due))
	for i, c := range due {
		ids[i] = c.ID
	}
	return ids, nil
}

func (m *memRepo) ListMembers(_ context.Context, groupID string) ([]domain.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.members[groupID]
	if !ok {
		return nil, campaign.ErrMissingGroup
	}
	return append([]domain.Membership(nil), ms...), nil
}

func (m *memRepo) MarkSending(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	c.Status = domain.CampaignSending
	c.ProcessingStartedAt = &at
	return nil
}

func (m *memRepo) ClaimDue(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	if c.Status != domain.CampaignScheduled {
		return false, nil
	}
	c.Status = domain.CampaignSending
	c.ProcessingStartedAt = &at
	return true, nil
}

func (m *memRepo) DeleteRecipients(_ context.Context, campaignID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recipients, campaignID)
	return nil
}

func (m *memRepo) CreateRecipient(_ context.Context, r *domain.CampaignRecipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateRecipient != nil {
		return m.failCreateRecipient
	}
	m.recipients[r.CampaignID] = append(m.recipients[r.CampaignID], *r)
	return nil
}

func (m *memRepo) MarkSent(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	c.Status = domain.CampaignSent
	c.SentAt = &at
	c.ProcessingStartedAt = nil
	return nil
}

func (m *memRepo) campaign(id string) domain.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

func (m *memRepo) rows(id string) []domain.CampaignRecipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CampaignRecipient(nil), m.recipients[id]...)
}

// fakeSender records messages and fails for addresses listed in failFor.
// onSend, when set, runs before each message is recorded.
type fakeSender struct {
	mu       sync.Mutex
	sent     []domain.EmailMessage
	failFor  map[string]error
	notReady error
	onSend   func(ctx context.Context, msg *domain.EmailMessage)
}

func (f *fakeSender) Send(ctx context.Context, msg *domain.EmailMessage) (string, error) {
	if f.onSend != nil {
		f.onSend(ctx, msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *msg)
	if err := f.failFor[msg.To]; err != nil {
		return "", err
	}
	return "msg-" + msg.To, nil
}

func (f *fakeSender) Ready() error { return f.notReady }

func (f *fakeSender) messages() []domain.EmailMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.EmailMessage(nil), f.sent...)
}

var _ sending.Sender = (*fakeSender)(nil)

type noAttachments struct{}

func (noAttachments) ResolveAll(context.Context, string) ([]domain.File, error) { return nil, nil }

func newCodec(t *testing.T) *security.Codec {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c := security.NewCodec(base64.StdEncoding.EncodeToString(key), "pepper")
	require.NoError(t, c.Validate())
	return c
}

// fixture wires a dispatcher over memRepo with a recording sleep.
type fixture struct {
	repo   *memRepo
	codec  *security.Codec
	sender *fakeSender
	d      *campaign.Dispatcher
	sleeps []time.Duration
}

func newFixture(t *testing.T, opts ...campaign.DispatcherOption) *fixture {
	t.Helper()
	f := &fixture{repo: newMemRepo(), codec: newCodec(t), sender: &fakeSender{failFor: map[string]error{}}}
	opts = append([]campaign.DispatcherOption{
		campaign.WithSleep(func(_ context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return nil
		}),
	}, opts...)
	f.d = campaign.NewDispatcher(f.repo, f.codec, f.sender, noAttachments{}, nil, "Mailroom <noreply@example.com>", opts...)
	return f
}

// addContact adds a member to group with an encrypted email and optional name.
func (f *fixture) addContact(t *testing.T, groupID, email string, name *string) domain.Contact {
	t.Helper()
	enc, err := f.codec.Encrypt(email)
	require.NoError(t, err)
	encName, err := f.codec.EncryptNullable(name)
	require.NoError(t, err)
	c := domain.Contact{ID: "contact-" + email, Email: enc, Name: encName}
	f.repo.mu.Lock()
	f.repo.members[groupID] = append(f.repo.members[groupID], domain.Membership{ContactID: c.ID, GroupID: groupID, Contact: &c})
	f.repo.mu.Unlock()
	return c
}

func (f *fixture) addGroup(groupID string) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	if _, ok := f.repo.members[groupID]; !ok {
		f.repo.members[groupID] = []domain.Membership{}
	}
}

func (f *fixture) addCampaign(c domain.Campaign) {
	if c.Status == "" {
		c.Status = domain.CampaignDraft
	}
	if c.SendMode == "" {
		c.SendMode = domain.SendNow
	}
	if c.Subject == "" {
		c.Subject = "Hello"
	}
	if c.HTML == "" {
		c.HTML = "<p>Hi {{name}}</p>"
	}
	_ = f.repo.Create(context.Background(), &c)
}

func strPtr(s string) *string { return &s }

func TestService_Create_NowDispatchesImmediately(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "g1", "a@example.com", nil)
	svc := campaign.NewService(f.repo, f.codec, f.d)

	out, err := svc.Create(context.Background(), campaign.CreateInput{
		Name: "Launch", Subject: "Big news", HTML: "<p>Hi {{name}}</p>",
		GroupID: "g1", SendMode: "bogus-mode",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SendNow, out.Campaign.SendMode)
	require.NotNil(t, out.Dispatch)
	assert.Equal(t, 1, out.Dispatch.Sent)
	assert.Equal(t, domain.CampaignSent, f.repo.campaign(out.Campaign.ID).Status)
	assert.Equal(t, "[]", f.repo.campaign(out.Campaign.ID).AttachmentRaw)
}

func TestService_DispatchOutlivesCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, campaign.WithSleep(func(sctx context.Context, _ time.Duration) error {
		// The client disconnects during the first wait.
		cancel()
		return sctx.Err()
	}))
	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		f.addContact(t, "g1", e, nil)
	}
	f.addCampaign(domain.Campaign{ID: "c1", GroupID: strPtr("g1"), SendMode: domain.SendStaggered, StaggerMinutes: intPtr(1)})
	svc := campaign.NewService(f.repo, f.codec, f.d)

	res, err := svc.Send(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	require.Error(t, ctx.Err())

	c := f.repo.campaign("c1")
	assert.Equal(t, domain.CampaignSent, c.Status)
	assert.Nil(t, c.ProcessingStartedAt)
	assert.Len(t, f.repo.rows("c1"), 3)

	// A request that is already gone still gets its immediate send.
	out, err := svc.Create(ctx, campaign.CreateInput{
		Name: "n", Subject: "s", HTML: "h", GroupID: "g1", SendMode: "staggered", StaggerMinutes: "2",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Dispatch.Sent)
	assert.Equal(t, domain.CampaignSent, f.repo.campaign(out.Campaign.ID).Status)
}

func TestService_Create_Scheduled(t *testing.T) {
	f := newFixture(t)
	svc := campaign.NewService(f.repo, f.codec, f.d)
	ctx := context.Background()

	future := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	out, err := svc.Create(ctx, campaign.CreateInput{
		Name: "Later", Subject: "s", HTML: "h", GroupID: "g1",
		SendMode: "scheduled", ScheduledFor: future,
		SendFailureReport: true, FailureReportEmail: "  Ops@Example.COM ",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Dispatch)
	assert.Equal(t, domain.CampaignScheduled, out.Campaign.Status)
	require.NotNil(t, out.Campaign.FailureReportEmail)
	assert.Equal(t, "ops@example.com", *out.Campaign.FailureReportEmail)
	assert.Empty(t, f.sender.messages())

	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	_, err = svc.Create(ctx, campaign.CreateInput{Name: "n", Subject: "s", HTML: "h", SendMode: "scheduled", ScheduledFor: past})
	assert.ErrorIs(t, err, campaign.ErrInvalidInput)

	_, err = svc.Create(ctx, campaign.CreateInput{Name: "n", Subject: "s", HTML: "h", SendMode: "scheduled", ScheduledFor: "tomorrow-ish"})
	assert.ErrorIs(t, err, campaign.ErrInvalidInput)
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	svc := campaign.NewService(f.repo, f.codec, f.d)
	ctx := context.Background()

	_, err := svc.Create(ctx, campaign.CreateInput{Name: "", Subject: "s", HTML: "h"})
	assert.ErrorIs(t, err, campaign.ErrInvalidInput)

	_, err = svc.Create(ctx, campaign.CreateInput{Name: "n", Subject: "s", HTML: "h", SendFailureReport: true})
	assert.ErrorIs(t, err, campaign.ErrInvalidInput)

	// Created as draft, then the dispatch fails for lack of a group.
	out, err := svc.Create(ctx, campaign.CreateInput{Name: "n", Subject: "s", HTML: "h", SendMode: "staggered", StaggerMinutes: "0"})
	assert.ErrorIs(t, err, campaign.ErrMissingGroup)
	require.NotNil(t, out)
	require.NotNil(t, out.Campaign.StaggerMinutes)
	assert.Equal(t, 1, *out.Campaign.StaggerMinutes)
	assert.Equal(t, domain.CampaignDraft, f.repo.campaign(out.Campaign.ID).Status)
}

func TestParseStaggerMinutes(t *testing.T) {
	cases := map[string]int{"": 1, "0": 1, "-4": 1, "abc": 1, "1": 1, "15": 15, " 30 ": 30, "12abc": 12}
	for in, want := range cases {
		assert.Equal(t, want, campaign.ParseStaggerMinutes(in), in)
	}
}

func TestService_ListDecryptsRecipients(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "g1", "a@example.com", nil)
	f.addCampaign(domain.Campaign{ID: "c1", GroupID: strPtr("g1")})
	_, err := f.d.Dispatch(context.Background(), "c1")
	require.NoError(t, err)

	f.repo.mu.Lock()
	f.repo.recipients["c1"] = append(f.repo.recipients["c1"], domain.CampaignRecipient{ID: "broken", CampaignID: "c1", Email: "enc:v1:AAAA:AAAA:AAAA"})
	f.repo.mu.Unlock()

	svc := campaign.NewService(f.repo, f.codec, f.d)
	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].Recipients, 2)
	assert.Equal(t, "a@example.com", items[0].Recipients[0].Email)
	assert.Equal(t, "", items[0].Recipients[1].Email)
}

func TestService_GetDelete(t *testing.T) {
	f := newFixture(t)
	f.addCampaign(domain.Campaign{ID: "c1"})
	svc := campaign.NewService(f.repo, f.codec, f.d)

	c, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	require.NoError(t, svc.Delete(context.Background(), "c1"))
	_, err = svc.Get(context.Background(), "c1")
	assert.True(t, errors.Is(err, campaign.ErrNotFound))
	assert.ErrorIs(t, svc.Delete(context.Background(), "c1"), campaign.ErrNotFound)
}

func TestStaggerDelay(t *testing.T) {
	two := 2
	assert.Zero(t, campaign.StaggerDelay(domain.SendNow, &two, 10))
	assert.Zero(t, campaign.StaggerDelay(domain.SendScheduled, &two, 10))
	assert.Zero(t, campaign.StaggerDelay(domain.SendStaggered, nil, 10))
	assert.Zero(t, campaign.StaggerDelay(domain.SendStaggered, &two, 1))
	assert.Zero(t, campaign.StaggerDelay(domain.SendStaggered, &two, 0))
	assert.Equal(t, 2*time.Minute, campaign.StaggerDelay(domain.SendStaggered, &two, 2))
	assert.Equal(t, 40*time.Second, campaign.StaggerDelay(domain.SendStaggered, &two, 4))
	// floor(60000/7) ms
	one := 1
	assert.Equal(t, 8571*time.Millisecond, campaign.StaggerDelay(domain.SendStaggered, &one, 8))
}

func TestStaggerDelay_SumsToDuration(t *testing.T) {
	for _, minutes := range []int{1, 3, 7, 60} {
		for n := 2; n <= 50; n++ {
			m := minutes
			total := campaign.StaggerDelay(domain.SendStaggered, &m, n) * time.Duration(n-1)
			want := time.Duration(minutes) * time.Minute
			assert.LessOrEqual(t, total, want)
			assert.Greater(t, total, want-time.Duration(n-1)*time.Millisecond, "minutes=%d n=%d", minutes, n)
		}
	}
}

func TestRenderFailureReport(t *testing.T) {
	html, err := campaign.RenderFailureReport("Q3 <Launch>", &domain.DispatchResult{
		Sent: 1, Failed: 1,
		Results: []domain.RecipientResult{
			{Email: "ok@example.com", Status: domain.RecipientSent},
			{Email: "bad@example.com", Status: domain.RecipientFailed, Error: `rejected: <script>"x"</script>`},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Q3 &lt;Launch&gt;")
	assert.Contains(t, html, "bad@example.com")
	assert.NotContains(t, html, "ok@example.com")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "No failures were recorded.")

	html, err = campaign.RenderFailureReport("Clean", &domain.DispatchResult{Sent: 2})
	require.NoError(t, err)
	assert.Contains(t, html, "No failures were recorded.")
	assert.True(t, strings.Contains(html, "Sent: <strong>2</strong>"))
	assert.Equal(t, "Campaign failure report: Clean", campaign.FailureReportSubject("Clean"))
}
