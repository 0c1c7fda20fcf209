package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/service/group"
)

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (req groupRequest) input() group.Input {
	return group.Input{Name: req.Name, Description: req.Description}
}

//	GET /api/groups
func (h *Handlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	items, err := h.groups.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.ContactGroup{}
	}
	httputil.OK(w, items)
}

//	POST /api/groups
func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	g, err := h.groups.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, g)
}

//	PUT /api/groups/{id}
func (h *Handlers) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	g, err := h.groups.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, g)
}

// DeleteGroup removes a group. Its members are deleted with mode
// "delete-members" and moved to the default group otherwise.
//
//	DELETE /api/groups/{id}
func (h *Handlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	mode := domain.NormalizeGroupDeleteMode(req.Mode)
	if err := h.groups.Delete(r.Context(), chi.URLParam(r, "id"), mode); err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"ok": true})
}

//	POST /api/groups/{id}/members
func (h *Handlers) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID string `json:"contactId"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.groups.AddMember(r.Context(), chi.URLParam(r, "id"), req.ContactID); err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, map[string]bool{"ok": true})
}
