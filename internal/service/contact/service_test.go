package contact_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/security"
	"github.com/ignite/mailroom/internal/service/contact"
)

// memRepo is an in-memory contact repository for unit testing.
type memRepo struct {
	mu         sync.Mutex
	contacts   map[string]*domain.Contact
	groups     map[string]string // id -> name
	members    map[string]map[string]bool
	recipients map[string]string
	updates    int
}

func newMemRepo() *memRepo {
	return &memRepo{
		contacts:   make(map[string]*domain.Contact),
		groups:     make(map[string]string),
		members:    make(map[string]map[string]bool),
		recipients: make(map[string]string),
	}
}

func (m *memRepo) withGroups(c domain.Contact) domain.Contact {
	c.Groups = nil
	for gid := range m.members[c.ID] {
		c.Groups = append(c.Groups, domain.GroupRef{ID: gid, Name: m.groups[gid]})
	}
	return c
}

func (m *memRepo) List(_ context.Context) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, c := range m.contacts {
		out = append(out, m.withGroups(*c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	out := m.withGroups(*c)
	return &out, nil
}

func (m *memRepo) FindByLookup(_ context.Context, hash, email string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.EmailHash == hash || c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, contact.ErrNotFound
}

func (m *memRepo) Create(_ context.Context, c *domain.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.contacts[c.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, c *domain.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[c.ID]; !ok {
		return contact.ErrNotFound
	}
	for id, other := range m.contacts {
		if id != c.ID && other.EmailHash != "" && other.EmailHash == c.EmailHash {
			return contact.ErrDuplicateEmail
		}
	}
	cp := *c
	m.contacts[c.ID] = &cp
	m.updates++
	return nil
}

func (m *memRepo) GroupExists(_ context.Context, groupID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[groupID]
	return ok, nil
}

func (m *memRepo) AddToGroup(_ context.Context, contactID, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[contactID] == nil {
		m.members[contactID] = map[string]bool{}
	}
	m.members[contactID][groupID] = true
	return nil
}

func (m *memRepo) DeleteMany(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.contacts[id]; ok {
			delete(m.contacts, id)
			delete(m.members, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) ListRecipientEmails(_ context.Context) ([]contact.RecipientEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []contact.RecipientEmail
	for id, email := range m.recipients {
		out = append(out, contact.RecipientEmail{ID: id, Email: email})
	}
	return out, nil
}

func (m *memRepo) UpdateRecipientEmail(_ context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipients[id] = email
	return nil
}

func (m *memRepo) stored(id string) domain.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.contacts[id]
}

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func newService(t *testing.T) (*contact.Service, *memRepo, *security.Codec) {
	t.Helper()
	codec := security.NewCodec(testKey(t), "pepper")
	repo := newMemRepo()
	return contact.NewService(repo, codec), repo, codec
}

func TestSave_CreatesEncryptedContact(t *testing.T) {
	svc, repo, codec := newService(t)
	repo.groups["g1"] = "Customers"

	c, err := svc.Save(context.Background(), contact.SaveInput{
		Email: "  Jane@Example.COM ", Name: " Jane ", Company: "", GroupID: "g1",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", c.Email)
	require.NotNil(t, c.Name)
	assert.Equal(t, "Jane", *c.Name)
	assert.Nil(t, c.Company)
	require.Len(t, c.Groups, 1)
	assert.Equal(t, "Customers", c.Groups[0].Name)

	stored := repo.stored(c.ID)
	assert.True(t, security.IsEncrypted(stored.Email))
	assert.True(t, security.IsEncrypted(*stored.Name))
	want, err := codec.LookupHash("jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, want, stored.EmailHash)
}

func TestSave_UpsertsByLookupHash(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Save(ctx, contact.SaveInput{Email: "a@example.com", Name: "Old"})
	require.NoError(t, err)
	second, err := svc.Save(ctx, contact.SaveInput{Email: "A@EXAMPLE.com", Name: "New", GroupID: "missing"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "New", *second.Name)
	assert.Empty(t, second.Groups, "unknown group is ignored")
	assert.Len(t, repo.contacts, 1)
}

func TestSave_MatchesLegacyPlaintextRow(t *testing.T) {
	svc, repo, _ := newService(t)
	repo.contacts["legacy"] = &domain.Contact{ID: "legacy", Email: "old@example.com"}

	c, err := svc.Save(context.Background(), contact.SaveInput{Email: "old@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "legacy", c.ID)
	assert.True(t, security.IsEncrypted(repo.stored("legacy").Email))
}

func TestSave_RequiresEmail(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Save(context.Background(), contact.SaveInput{Email: "   "})
	assert.ErrorIs(t, err, contact.ErrInvalidInput)
}

func TestSave_MissingPepper(t *testing.T) {
	svc := contact.NewService(newMemRepo(), security.NewCodec(testKey(t), ""))
	_, err := svc.Save(context.Background(), contact.SaveInput{Email: "a@example.com"})
	assert.ErrorIs(t, err, security.ErrConfiguration)
}

func TestUpdate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Save(ctx, contact.SaveInput{Email: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.Save(ctx, contact.SaveInput{Email: "b@example.com"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, contact.SaveInput{Email: "c@example.com", Company: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "c@example.com", updated.Email)
	assert.Equal(t, "Acme", *updated.Company)

	_, err = svc.Update(ctx, a.ID, contact.SaveInput{Email: "B@example.com"})
	assert.ErrorIs(t, err, contact.ErrDuplicateEmail)

	_, err = svc.Update(ctx, "nope", contact.SaveInput{Email: "x@example.com"})
	assert.ErrorIs(t, err, contact.ErrNotFound)

	_, err = svc.Update(ctx, a.ID, contact.SaveInput{})
	assert.ErrorIs(t, err, contact.ErrInvalidInput)
}

func TestList_DecryptsAndToleratesDamage(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, contact.SaveInput{Email: "a@example.com", Name: "Ann"})
	require.NoError(t, err)
	repo.contacts["z-broken"] = &domain.Contact{ID: "z-broken", Email: "enc:v1:bad"}

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a@example.com", items[0].Email)
	assert.Equal(t, "Ann", *items[0].Name)
	assert.Equal(t, "", items[1].Email)
}

func TestDeleteMany(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Save(ctx, contact.SaveInput{Email: "a@example.com"})
	require.NoError(t, err)

	n, err := svc.DeleteMany(ctx, []string{a.ID, " ", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.DeleteMany(ctx, []string{"", "  "})
	assert.ErrorIs(t, err, contact.ErrInvalidInput)
}

func TestRekey(t *testing.T) {
	svc, repo, codec := newService(t)
	ctx := context.Background()

	current, err := svc.Save(ctx, contact.SaveInput{Email: "current@example.com", Name: "Cur"})
	require.NoError(t, err)
	name := "Legacy Name"
	tags := "vip,beta"
	repo.contacts["legacy"] = &domain.Contact{ID: "legacy", Email: " Legacy@Example.com", Name: &name, Tags: &tags}
	staleEnv, err := codec.Encrypt("stale@example.com")
	require.NoError(t, err)
	repo.contacts["stale"] = &domain.Contact{ID: "stale", Email: staleEnv, EmailHash: "old-pepper-hash"}
	repo.recipients["r1"] = "plain@example.com"
	sealedEnv, err := codec.Encrypt("sealed@example.com")
	require.NoError(t, err)
	repo.recipients["r2"] = sealedEnv

	currentEnv := repo.stored(current.ID).Email
	before := repo.updates
	res, err := svc.Rekey(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.UpdatedContacts)
	assert.Equal(t, 1, res.UpdatedRecipients)
	assert.Equal(t, before+2, repo.updates)

	legacy := repo.stored("legacy")
	assert.True(t, security.IsEncrypted(legacy.Email))
	assert.True(t, security.IsEncrypted(*legacy.Name))
	assert.True(t, security.IsEncrypted(*legacy.Tags))
	plain, err := codec.Decrypt(legacy.Email)
	require.NoError(t, err)
	assert.Equal(t, "legacy@example.com", plain)
	wantHash, _ := codec.LookupHash("legacy@example.com")
	assert.Equal(t, wantHash, legacy.EmailHash)

	stale := repo.stored("stale")
	assert.NotEqual(t, "old-pepper-hash", stale.EmailHash)
	plain, err = codec.Decrypt(stale.Email)
	require.NoError(t, err)
	assert.Equal(t, "stale@example.com", plain)
	assert.Equal(t, currentEnv, repo.stored(current.ID).Email, "rows already in current form are untouched")
	assert.True(t, security.IsEncrypted(repo.recipients["r1"]))
	assert.Equal(t, sealedEnv, repo.recipients["r2"])

	again, err := svc.Rekey(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.UpdatedContacts)
	assert.Equal(t, 0, again.UpdatedRecipients)
}
