package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/mailroom/internal/auth"
)

// Authenticator is the sign-in surface mounted under /auth and /api/me.
type Authenticator interface {
	HandleLogin(w http.ResponseWriter, r *http.Request)
	HandleCallback(w http.ResponseWriter, r *http.Request)
	HandleLocal(w http.ResponseWriter, r *http.Request)
	HandleLogout(w http.ResponseWriter, r *http.Request)
	HandleMe(w http.ResponseWriter, r *http.Request)
	RequireSession(next http.Handler) http.Handler
}

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes configures all routes. Everything under /api requires a
// session; contact rekeying and user administration also require admin.
func SetupRoutes(h *Handlers, authn Authenticator, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if h.health != nil {
		r.Get("/health", h.health.HandleHealth)
		r.Get("/health/live", h.health.HandleLiveness)
		r.Get("/health/ready", h.health.HandleReadiness)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authn.HandleLogin)
		r.Get("/callback", authn.HandleCallback)
		r.Post("/local", authn.HandleLocal)
		r.Get("/logout", authn.HandleLogout)
	})

	if h.uploads != nil {
		r.Get("/uploads/*", h.ServeUpload)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authn.RequireSession)

		r.Get("/me", authn.HandleMe)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Post("/process-due", h.ProcessDueCampaigns)
			r.Get("/{id}", h.GetCampaign)
			r.Delete("/{id}", h.DeleteCampaign)
			r.Post("/{id}/send", h.SendCampaign)
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Post("/", h.SaveContact)
			r.Delete("/", h.DeleteContacts)
			r.Put("/{id}", h.UpdateContact)
			r.With(auth.RequireAdmin).Post("/rekey", h.RekeyContacts)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.ListGroups)
			r.Post("/", h.CreateGroup)
			r.Put("/{id}", h.UpdateGroup)
			r.Delete("/{id}", h.DeleteGroup)
			r.Post("/{id}/members", h.AddGroupMember)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/{id}", h.GetTemplate)
			r.Put("/{id}", h.UpdateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
		})

		r.Get("/upload", h.ListUploads)
		r.Post("/upload", h.CreateUpload)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/users", h.ListUsers)
			r.Post("/users", h.CreateUser)
			r.Patch("/users/{id}", h.UpdateUser)
		})
	})

	return r
}
