package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/service/template"
)

type templateRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Subject     string  `json:"subject"`
	HTML        string  `json:"html"`
	DesignJSON  *string `json:"designJson"`
}

func (req templateRequest) input() template.Input {
	in := template.Input{Name: req.Name, Description: req.Description, Subject: req.Subject, HTML: req.HTML}
	if req.DesignJSON != nil {
		in.DesignJSON = *req.DesignJSON
	}
	return in
}

// ListTemplates returns templates, seeding the defaults first.
//
//	GET /api/templates
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.templates.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.EmailTemplate{}
	}
	httputil.OK(w, items)
}

//	POST /api/templates
func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	t, err := h.templates.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, t)
}

//	GET /api/templates/{id}
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, t)
}

//	PUT /api/templates/{id}
func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	t, err := h.templates.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, t)
}

//	DELETE /api/templates/{id}
func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"ok": true})
}
