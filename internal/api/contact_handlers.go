package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/service/contact"
)

type contactRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Company string `json:"company"`
	GroupID string `json:"groupId"`
}

func (req contactRequest) input() contact.SaveInput {
	return contact.SaveInput{Email: req.Email, Name: req.Name, Company: req.Company, GroupID: req.GroupID}
}

//	GET /api/contacts
func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	items, err := h.contacts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.Contact{}
	}
	httputil.OK(w, items)
}

// SaveContact creates a contact or updates the one with the same address.
//
//	POST /api/contacts
func (h *Handlers) SaveContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.contacts.Save(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, c)
}

//	PUT /api/contacts/{id}
func (h *Handlers) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.contacts.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteContacts removes the contacts listed in the body.
//
//	DELETE /api/contacts
func (h *Handlers) DeleteContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	n, err := h.contacts.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"deletedCount": n})
}

// RekeyContacts re-encrypts every contact and recipient row under the
// current key and pepper.
//
//	POST /api/contacts/rekey
func (h *Handlers) RekeyContacts(w http.ResponseWriter, r *http.Request) {
	res, err := h.contacts.Rekey(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}
