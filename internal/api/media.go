package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"surfpass/internal/blob"
)

type MediaHandler struct {
	blobs *blob.Service
}

func NewMediaHandler(blobs *blob.Service) *MediaHandler {
	return &MediaHandler{blobs: blobs}
}

// GET /media/{ref}
func (h *MediaHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false)
}

// GET /media/{ref}/preview
func (h *MediaHandler) GetReceiptPreview(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

func (h *MediaHandler) serve(w http.ResponseWriter, r *http.Request, preview bool) {
	ref := strings.TrimSpace(chi.URLParam(r, "ref"))
	if !blob.ValidRef(ref) {
		notFound(w, "Media not found")
		return
	}

	file, err := h.blobs.Open(ref, preview)
	if errors.Is(err, os.ErrNotExist) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		internalError(w)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		internalError(w)
		return
	}

	etag := ref
	if preview {
		etag += "-preview"
		w.Header().Set("Content-Type", "image/jpeg")
	}
	// Receipts can show personal data; keep them out of shared caches.
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.Header().Set("ETag", fmt.Sprintf("\"%s\"", etag))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", ref))

	http.ServeContent(w, r, "", info.ModTime(), file)
}
