package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/eyetask/driverhub/internal/middleware"
	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/service"
	"github.com/eyetask/driverhub/internal/storage"
)

// maxUploadBytes caps accepted multipart uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// UploadHandler accepts multipart file uploads and stores them through
// the configured file store.
type UploadHandler struct {
	Store       storage.FileStore
	Permissions PermissionService
}

// UploadResponse carries the URL of the stored file.
type UploadResponse struct {
	URL string `json:"url"`
}

// Upload handles POST /api/upload. It expects a multipart form with a
// "file" part and responds with a dereferenceable URL.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUserIDFromContext(r.Context())
	ok, err := h.Permissions.Has(r.Context(), actor, models.PermTasksEdit)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, service.ErrForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: missing file part", service.ErrInvalid))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("%w: unreadable file", service.ErrInvalid))
		return
	}

	url, err := h.Store.Save(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{URL: url})
}
