package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/service/user"
)

// LocalEnvAdminID is the identity ID of the environment-configured admin.
const LocalEnvAdminID = "local-env-admin"

const (
	stateCookie        = "oauth_state"
	deniedRedirectPath = "/signin?error=no_matching_user_account_found"
)

// Config holds the sign-in settings.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// PublicURL is the externally visible origin used for the OAuth
	// redirect and post-login redirects.
	PublicURL string

	SessionSecret string
	CookieName    string
	SessionTTL    time.Duration

	LocalAdminUsername string
	LocalAdminPassword string
}

// Users is the account lookup the sign-in flows depend on.
type Users interface {
	Authenticate(ctx context.Context, username, password string) (*domain.AppUser, error)
	Resolve(ctx context.Context, username string) (*domain.AppUser, error)
	Current(ctx context.Context, id string) (*domain.AppUser, error)
}

// Manager handles Entra and local sign-in and the signed session cookie.
type Manager struct {
	cfg    Config
	secret []byte
	oauth  *oauth2.Config
	users  Users
	origin string
	now    func() time.Time
}

// NewManager creates a Manager. Entra sign-in is enabled when a client ID
// and secret are configured.
func NewManager(cfg Config, users Users) (*Manager, error) {
	if strings.TrimSpace(cfg.SessionSecret) == "" {
		return nil, errors.New("auth: session secret is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "mailroom_session"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = sessionTTLDefault
	}
	m := &Manager{
		cfg:    cfg,
		secret: []byte(cfg.SessionSecret),
		users:  users,
		origin: originOf(cfg.PublicURL),
		now:    time.Now,
	}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		tenant := cfg.TenantID
		if tenant == "" {
			tenant = "common"
		}
		m.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  m.origin + "/auth/callback",
			Scopes:       []string{"openid", "profile", "email", "offline_access"},
			Endpoint:     microsoft.AzureADEndpoint(tenant),
		}
	}
	return m, nil
}

// originOf reduces a configured URL to scheme://host, or "" when invalid.
func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (m *Manager) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, m.origin+path, http.StatusFound)
}

// HandleLogin starts the Entra authorization code flow.
func (m *Manager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if m.oauth == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "Microsoft sign-in is not configured")
		return
	}
	state, err := randomToken()
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   m.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, m.oauth.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes the Entra flow. The signed-in account must map
// to an enabled application user by username.
func (m *Manager) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if m.oauth == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "Microsoft sign-in is not configured")
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(r.URL.Query().Get("state"))) != 1 {
		logger.Warn("oauth callback state mismatch")
		m.redirect(w, r, "/signin?error=invalid_state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if e := r.URL.Query().Get("error"); e != "" {
		logger.Warn("identity provider returned error", "error", e)
		m.redirect(w, r, "/signin?error="+url.QueryEscape(e))
		return
	}

	token, err := m.oauth.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		logger.Warn("oauth code exchange failed", "error", err)
		m.redirect(w, r, "/signin?error=exchange_failed")
		return
	}
	rawID, _ := token.Extra("id_token").(string)
	username, err := usernameFromIDToken(rawID)
	if err != nil {
		logger.Warn("id token rejected", "error", err)
		m.redirect(w, r, "/signin?error=exchange_failed")
		return
	}

	u, err := m.users.Resolve(r.Context(), username)
	if errors.Is(err, user.ErrNotFound) {
		logger.Warn("no matching user account", "username", username)
		m.redirect(w, r, deniedRedirectPath)
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if err := m.startSession(w, identityOf(u, domain.AuthEntra)); err != nil {
		httputil.InternalError(w, err)
		return
	}
	logger.Info("user signed in", "username", u.Username, "source", string(domain.AuthEntra))
	m.redirect(w, r, "/")
}

// usernameFromIDToken picks preferred_username, then upn, then email from
// the ID token. The token is taken straight from the token endpoint over
// TLS, so its signature is not re-verified here.
func usernameFromIDToken(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("token response has no id_token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", fmt.Errorf("parse id_token: %w", err)
	}
	for _, key := range []string{"preferred_username", "upn", "email"} {
		if v, ok := claims[key].(string); ok && strings.TrimSpace(v) != "" {
			return user.NormalizeUsername(v), nil
		}
	}
	return "", errors.New("id_token carries no username claim")
}

type localCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLocal signs in with a username and password: the environment admin
// first, then enabled users with a local password.
func (m *Manager) HandleLocal(w http.ResponseWriter, r *http.Request) {
	var in localCredentials
	if !httputil.Decode(w, r, &in) {
		return
	}
	id, err := m.authenticateLocal(r.Context(), in.Username, in.Password)
	if errors.Is(err, user.ErrNotFound) {
		httputil.Unauthorized(w, "Invalid username or password")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if err := m.startSession(w, id); err != nil {
		httputil.InternalError(w, err)
		return
	}
	logger.Info("user signed in", "username", id.Username, "source", string(id.AuthSource))
	httputil.OK(w, meResponse(id))
}

func (m *Manager) authenticateLocal(ctx context.Context, username, password string) (domain.Identity, error) {
	username = user.NormalizeUsername(username)
	if username == "" || password == "" {
		return domain.Identity{}, user.ErrNotFound
	}
	envUser := user.NormalizeUsername(m.cfg.LocalAdminUsername)
	if envUser != "" && m.cfg.LocalAdminPassword != "" && username == envUser &&
		subtle.ConstantTimeCompare([]byte(password), []byte(m.cfg.LocalAdminPassword)) == 1 {
		return domain.Identity{
			AppUserID:  LocalEnvAdminID,
			Username:   envUser,
			Role:       domain.RoleAdmin,
			AuthSource: domain.AuthLocalEnv,
		}, nil
	}
	u, err := m.users.Authenticate(ctx, username, password)
	if err != nil {
		return domain.Identity{}, err
	}
	return identityOf(u, domain.AuthLocalDB), nil
}

func identityOf(u *domain.AppUser, src domain.AuthSource) domain.Identity {
	return domain.Identity{
		AppUserID:  u.ID,
		Username:   u.Username,
		Role:       domain.ParseRole(string(u.Role)),
		AuthSource: src,
	}
}

// HandleLogout clears the session cookie.
func (m *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	m.redirect(w, r, "/signin")
}

// HandleMe returns the caller's identity.
func (m *Manager) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		httputil.Unauthorized(w, "Unauthorized")
		return
	}
	httputil.OK(w, meResponse(id))
}

func meResponse(id domain.Identity) map[string]string {
	return map[string]string{
		"username": id.Username,
		"role":     string(id.Role),
		"source":   string(id.AuthSource),
	}
}

func (m *Manager) secureCookies() bool { return strings.HasPrefix(m.origin, "https://") }

func (m *Manager) startSession(w http.ResponseWriter, id domain.Identity) error {
	signed, err := m.issue(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
