package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/service/user"
)

type userRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Enabled     *bool  `json:"enabled"`
	Password    string `json:"password"`
}

func (req userRequest) input() user.Input {
	return user.Input{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Role:        req.Role,
		Enabled:     req.Enabled,
		Password:    req.Password,
	}
}

// userView adds the password flag to the stored user. The hash itself is
// never serialized.
type userView struct {
	domain.AppUser
	HasLocalPassword bool `json:"has_local_password"`
}

func viewOf(u domain.AppUser) userView {
	return userView{AppUser: u, HasLocalPassword: u.HasLocalPassword()}
}

//	GET /api/admin/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]userView, 0, len(items))
	for _, u := range items {
		out = append(out, viewOf(u))
	}
	httputil.OK(w, out)
}

//	POST /api/admin/users
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	u, err := h.users.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, viewOf(*u))
}

//	PATCH /api/admin/users/{id}
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	u, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, viewOf(*u))
}
