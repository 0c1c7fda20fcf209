package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/user"
)

type fakeUsers struct {
	byID      map[string]*domain.AppUser
	passwords map[string]string
}

func newFakeUsers(users ...*domain.AppUser) *fakeUsers {
	f := &fakeUsers{byID: map[string]*domain.AppUser{}, passwords: map[string]string{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) byUsername(username string) *domain.AppUser {
	for _, u := range f.byID {
		if u.Username == username && u.Enabled {
			return u
		}
	}
	return nil
}

func (f *fakeUsers) Authenticate(_ context.Context, username, password string) (*domain.AppUser, error) {
	u := f.byUsername(username)
	if u == nil || f.passwords[username] != password {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Resolve(_ context.Context, username string) (*domain.AppUser, error) {
	if u := f.byUsername(username); u != nil {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) Current(_ context.Context, id string) (*domain.AppUser, error) {
	u, ok := f.byID[id]
	if !ok || !u.Enabled {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func newManager(t *testing.T, users Users) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		PublicURL:          "https://mail.example.com/some/path",
		SessionSecret:      "test-secret",
		LocalAdminUsername: "Admin",
		LocalAdminPassword: "env-pass",
	}, users)
	require.NoError(t, err)
	return m
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

// whoami runs a request carrying cookie through RequireSession and returns
// the response and the identity seen by the handler.
func whoami(m *Manager, cookie *http.Cookie) (*httptest.ResponseRecorder, *domain.Identity) {
	var seen *domain.Identity
	h := m.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFrom(r.Context())
		seen = &id
		m.HandleMe(w, r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func localLogin(m *Manager, username, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(localCredentials{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/auth/local", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	m.HandleLocal(rec, req)
	return rec
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager(Config{}, newFakeUsers())
	assert.Error(t, err)
}

func TestLocalLogin_EnvAdmin(t *testing.T) {
	m := newManager(t, newFakeUsers())

	rec := localLogin(m, "  ADMIN ", "env-pass")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"admin","role":"admin","source":"local-env"}`, rec.Body.String())

	cookie := sessionCookie(t, rec, "mailroom_session")
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, int((4 * time.Hour).Seconds()), cookie.MaxAge)

	rec, id := whoami(m, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, id)
	assert.Equal(t, LocalEnvAdminID, id.AppUserID)
	assert.Equal(t, domain.RoleAdmin, id.Role)
}

func TestLocalLogin_DatabaseUser(t *testing.T) {
	users := newFakeUsers(&domain.AppUser{ID: "u1", Username: "jane", Role: domain.RoleManager, Enabled: true})
	users.passwords["jane"] = "pw"
	m := newManager(t, users)

	rec := localLogin(m, "jane", "pw")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"jane","role":"manager","source":"local-db"}`, rec.Body.String())
}

func TestLocalLogin_Rejected(t *testing.T) {
	users := newFakeUsers(&domain.AppUser{ID: "u1", Username: "jane", Enabled: true})
	users.passwords["jane"] = "pw"
	m := newManager(t, users)

	for _, tc := range []struct{ username, password string }{
		{"jane", "wrong"},
		{"admin", "nope"},
		{"", ""},
		{"ghost", "pw"},
	} {
		rec := localLogin(m, tc.username, tc.password)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.username)
		assert.Empty(t, rec.Result().Cookies())
	}
}

func TestRequireSession_Unauthenticated(t *testing.T) {
	m := newManager(t, newFakeUsers())

	rec, _ := whoami(m, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec, _ = whoami(m, &http.Cookie{Name: "mailroom_session", Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := NewManager(Config{SessionSecret: "other-secret", LocalAdminUsername: "admin", LocalAdminPassword: "x"}, newFakeUsers())
	require.NoError(t, err)
	forged := sessionCookie(t, localLogin(other, "admin", "x"), "mailroom_session")
	rec, _ = whoami(m, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSession_Expired(t *testing.T) {
	m := newManager(t, newFakeUsers())
	start := time.Now()
	m.now = func() time.Time { return start }
	cookie := sessionCookie(t, localLogin(m, "admin", "env-pass"), "mailroom_session")

	m.now = func() time.Time { return start.Add(4*time.Hour + time.Minute) }
	rec, _ := whoami(m, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSession_RefreshesDatabaseUsers(t *testing.T) {
	u := &domain.AppUser{ID: "u1", Username: "jane", Role: domain.RoleViewer, Enabled: true}
	users := newFakeUsers(u)
	users.passwords["jane"] = "pw"
	m := newManager(t, users)
	cookie := sessionCookie(t, localLogin(m, "jane", "pw"), "mailroom_session")

	u.Role = domain.RoleAdmin
	rec, id := whoami(m, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RoleAdmin, id.Role)

	u.Enabled = false
	rec, _ = whoami(m, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"No matching user account found"}`, rec.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireAdmin(ok)

	run := func(ctx context.Context) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil).WithContext(ctx))
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, run(context.Background()))
	assert.Equal(t, http.StatusForbidden, run(WithIdentity(context.Background(), domain.Identity{Role: domain.RoleManager})))
	assert.Equal(t, http.StatusNoContent, run(WithIdentity(context.Background(), domain.Identity{Role: domain.RoleAdmin})))
}

func TestUsernameFromIDToken(t *testing.T) {
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("idp"))
		require.NoError(t, err)
		return s
	}

	got, err := usernameFromIDToken(sign(jwt.MapClaims{"preferred_username": " Jane@Corp.com", "upn": "x@corp.com"}))
	require.NoError(t, err)
	assert.Equal(t, "jane@corp.com", got)

	got, err = usernameFromIDToken(sign(jwt.MapClaims{"upn": "UPN@corp.com", "email": "e@corp.com"}))
	require.NoError(t, err)
	assert.Equal(t, "upn@corp.com", got)

	got, err = usernameFromIDToken(sign(jwt.MapClaims{"email": "e@corp.com"}))
	require.NoError(t, err)
	assert.Equal(t, "e@corp.com", got)

	_, err = usernameFromIDToken(sign(jwt.MapClaims{"name": "No Username"}))
	assert.Error(t, err)
	_, err = usernameFromIDToken("")
	assert.Error(t, err)
}

func newTokenServer(t *testing.T, idClaims jwt.MapClaims) *httptest.Server {
	t.Helper()
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, idClaims).SignedString([]byte("idp"))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func callback(m *Manager, state, cookieState string) *httptest.ResponseRecorder {
	q := url.Values{"code": {"abc"}, "state": {state}}
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+q.Encode(), nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: cookieState})
	rec := httptest.NewRecorder()
	m.HandleCallback(rec, req)
	return rec
}

func entraManager(t *testing.T, users Users, srv *httptest.Server) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		ClientID:      "client",
		ClientSecret:  "secret",
		PublicURL:     "https://mail.example.com",
		SessionSecret: "test-secret",
	}, users)
	require.NoError(t, err)
	m.oauth.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"}
	return m
}

func TestCallback_MatchingUser(t *testing.T) {
	users := newFakeUsers(&domain.AppUser{ID: "u1", Username: "jane@corp.com", Role: domain.RoleManager, Enabled: true})
	m := entraManager(t, users, newTokenServer(t, jwt.MapClaims{"preferred_username": "Jane@Corp.com"}))

	rec := callback(m, "s1", "s1")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://mail.example.com/", rec.Header().Get("Location"))

	rec, id := whoami(m, sessionCookie(t, rec, "mailroom_session"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.AuthEntra, id.AuthSource)
	assert.Equal(t, "u1", id.AppUserID)
}

func TestCallback_NoMatchingUser(t *testing.T) {
	m := entraManager(t, newFakeUsers(), newTokenServer(t, jwt.MapClaims{"upn": "stranger@corp.com"}))

	rec := callback(m, "s1", "s1")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://mail.example.com"+deniedRedirectPath, rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		assert.NotEqual(t, "mailroom_session", c.Name)
	}
}

func TestCallback_StateMismatch(t *testing.T) {
	m := entraManager(t, newFakeUsers(), newTokenServer(t, jwt.MapClaims{}))

	rec := callback(m, "s1", "other")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "error=invalid_state")
}

func TestLogin_NotConfigured(t *testing.T) {
	m := newManager(t, newFakeUsers())
	rec := httptest.NewRecorder()
	m.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogin_RedirectsToEntra(t *testing.T) {
	m, err := NewManager(Config{ClientID: "client", ClientSecret: "secret", TenantID: "contoso",
		PublicURL: "https://mail.example.com", SessionSecret: "s"}, newFakeUsers())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "login.microsoftonline.com", loc.Host)
	assert.Contains(t, loc.Path, "/contoso/")
	assert.Equal(t, "https://mail.example.com/auth/callback", loc.Query().Get("redirect_uri"))
	assert.Equal(t, sessionCookie(t, rec, stateCookie).Value, loc.Query().Get("state"))
}
