package api

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/ignite/mailroom/internal/attachment"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/security"
	"github.com/ignite/mailroom/internal/service/campaign"
	"github.com/ignite/mailroom/internal/service/contact"
	"github.com/ignite/mailroom/internal/service/group"
	"github.com/ignite/mailroom/internal/service/template"
	"github.com/ignite/mailroom/internal/service/user"
)

// errorMapping ties a sentinel to its response. An empty message means the
// detail wrapped around the sentinel is shown to the client.
type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{campaign.ErrNotFound, http.StatusNotFound, "Campaign not found"},
	{contact.ErrNotFound, http.StatusNotFound, "Contact not found"},
	{group.ErrNotFound, http.StatusNotFound, "Group not found"},
	{group.ErrContactNotFound, http.StatusNotFound, "Contact not found"},
	{template.ErrNotFound, http.StatusNotFound, "Template not found"},
	{user.ErrNotFound, http.StatusNotFound, "User not found"},

	{campaign.ErrAlreadyDispatching, http.StatusConflict, "Campaign is already being sent"},
	{contact.ErrDuplicateEmail, http.StatusConflict, "Email already exists"},
	{group.ErrDuplicateName, http.StatusConflict, "Group name already exists"},
	{user.ErrDuplicateUser, http.StatusConflict, "Username or email already exists"},

	{campaign.ErrMissingGroup, http.StatusBadRequest, "Campaign has no target group"},
	{campaign.ErrInvalidInput, http.StatusBadRequest, ""},
	{contact.ErrInvalidInput, http.StatusBadRequest, ""},
	{group.ErrInvalidInput, http.StatusBadRequest, ""},
	{template.ErrInvalidInput, http.StatusBadRequest, ""},
	{user.ErrInvalidInput, http.StatusBadRequest, ""},

	{attachment.ErrInvalidAttachment, http.StatusBadRequest, "Invalid attachment"},
	{attachment.ErrUnsafeURL, http.StatusBadRequest, "Attachment URL is not allowed"},
	{attachment.ErrPathTraversal, http.StatusBadRequest, "Invalid attachment path"},
	{attachment.ErrUnsupportedImage, http.StatusBadRequest, "Only PNG, JPG, GIF, and WEBP images are allowed"},
	{attachment.ErrTooLarge, http.StatusBadRequest, "File is too large (max 10MB)"},
}

// writeError maps service errors to HTTP responses. Configuration and
// unknown errors are logged and answered with a generic 500.
func writeError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = detail(err, m.target)
		}
		httputil.Error(w, m.status, msg)
		return
	}
	if errors.Is(err, campaign.ErrConfiguration) || errors.Is(err, security.ErrConfiguration) {
		logger.Error("service is misconfigured", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	httputil.InternalError(w, err)
}

// detail returns the text wrapped around sentinel ("<sentinel>: detail"),
// capitalised, or the sentinel's own text when there is none.
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		msg = msg[i+len(sentinel.Error())+2:]
	}
	if msg == "" {
		return "Bad request"
	}
	r := []rune(msg)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
