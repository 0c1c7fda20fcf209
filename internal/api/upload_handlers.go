package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ignite/mailroom/internal/attachment"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httputil"
)

const uploadListLimit = 40

// ListUploads lists stored images, newest first.
//
//	GET /api/upload?kind=image
func (h *Handlers) ListUploads(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("kind") != "image" {
		httputil.BadRequest(w, "Unsupported kind")
		return
	}
	items, err := h.uploads.List(r.Context(), uploadListLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []attachment.StoredImage{}
	}
	httputil.OK(w, items)
}

// CreateUpload stores an image sent as the "file" part, or registers an
// external URL sent as "url" with an optional "name".
//
//	POST /api/upload
func (h *Handlers) CreateUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, attachment.MaxBytes+1<<20)
	if err := r.ParseMultipartForm(attachment.MaxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, attachment.ErrTooLarge)
			return
		}
		httputil.BadRequest(w, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, attachment.MaxBytes+1))
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		rec, err := attachment.SaveImage(r.Context(), h.uploads, header.Filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.Created(w, rec)
		return
	}

	rawURL := strings.TrimSpace(r.FormValue("url"))
	if rawURL == "" {
		httputil.BadRequest(w, "Either file or URL must be provided")
		return
	}
	safe, err := attachment.ValidateExternalURL(rawURL)
	if err != nil {
		writeError(w, err)
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = safe
	}
	httputil.Created(w, domain.AttachmentRecord{ID: safe, Type: domain.AttachmentURL, Name: name, URL: safe})
}

// ServeUpload returns a stored file by its /uploads/ path.
//
//	GET /uploads/*
func (h *Handlers) ServeUpload(w http.ResponseWriter, r *http.Request) {
	data, err := h.uploads.Open(r.Context(), r.URL.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, attachment.ErrInvalidAttachment) ||
			errors.Is(err, attachment.ErrPathTraversal) {
			http.NotFound(w, r)
			return
		}
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}
