package auth

import (
	"errors"
	"net/http"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/service/user"
)

// RequireSession resolves the session cookie into an Identity on the
// request context. Database-backed identities are re-checked on every
// request so disabled accounts lose access and role changes apply at once.
func (m *Manager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(m.cfg.CookieName)
		if err != nil || c.Value == "" {
			httputil.Unauthorized(w, "Unauthorized")
			return
		}
		id, err := m.parse(c.Value)
		if err != nil {
			logger.Debug("session rejected", "error", err)
			httputil.Unauthorized(w, "Unauthorized")
			return
		}

		if id.AuthSource == domain.AuthEntra || id.AuthSource == domain.AuthLocalDB {
			u, err := m.users.Current(r.Context(), id.AppUserID)
			if errors.Is(err, user.ErrNotFound) {
				httputil.Forbidden(w, "No matching user account found")
				return
			}
			if err != nil {
				httputil.InternalError(w, err)
				return
			}
			id = identityOf(u, id.AuthSource)
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAdmin rejects identities without the admin role. It must run
// after RequireSession.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			httputil.Unauthorized(w, "Unauthorized")
			return
		}
		if !id.IsAdmin() {
			httputil.Forbidden(w, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
