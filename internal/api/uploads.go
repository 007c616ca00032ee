package api

import (
	"bytes"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"surfpass/internal/blob"
	"surfpass/internal/mediaurl"
)

type UploadHandler struct {
	blobs                   *blob.Service
	baseURL                 string
	uploadRequestLimitBytes int64
}

func NewUploadHandler(blobs *blob.Service, baseURL string, uploadRequestLimitBytes int64) *UploadHandler {
	return &UploadHandler{
		blobs:                   blobs,
		baseURL:                 baseURL,
		uploadRequestLimitBytes: uploadRequestLimitBytes,
	}
}

type PhotoUploadResponse struct {
	Ref        string `json:"ref"`
	Name       string `json:"name"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	URL        string `json:"url"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// POST /api/v1/staff/photos
func (h *UploadHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, cleanup, ok := readSingleFileUpload(w, r, h.uploadRequestLimitBytes)
	if !ok {
		return
	}
	defer cleanup()
	defer file.Close()

	stored, err := h.blobs.Save(r.Context(), blob.KindReceipt, fileHeader.Filename, file)
	if !handleBlobSaveError(w, err) {
		return
	}

	resp := PhotoUploadResponse{
		Ref:      stored.ID,
		Name:     stored.OriginalName,
		MimeType: stored.MimeType,
		Size:     stored.SizeBytes,
		URL:      mediaurl.Receipt(h.baseURL, stored.ID),
	}
	if err := h.createPreview(stored.ID); err != nil {
		slog.Warn("error generating receipt preview", "error", err, "ref", stored.ID)
	} else {
		resp.PreviewURL = mediaurl.ReceiptPreview(h.baseURL, stored.ID)
	}

	slog.Info("receipt uploaded", "ref", stored.ID, "size", stored.SizeBytes, "staff_id", GetAccount(r).ID)
	created(w, "Photo uploaded", resp)
}

func (h *UploadHandler) createPreview(ref string) error {
	file, err := h.blobs.Open(ref, false)
	if err != nil {
		return err
	}
	defer file.Close()

	preview, err := blob.GeneratePreview(file, blob.DefaultPreviewMaxEdge, blob.DefaultPreviewQuality)
	if err != nil {
		return err
	}
	_, err = h.blobs.SavePreview(ref, bytes.NewReader(preview.Data))
	return err
}

func readSingleFileUpload(
	w http.ResponseWriter,
	r *http.Request,
	maxBytes int64,
) (multipart.File, *multipart.FileHeader, func(), bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	}

	err := r.ParseMultipartForm(1 << 20)
	if err != nil {
		if isBodyTooLargeError(err) {
			payloadTooLarge(w, "File exceeds maximum upload size")
		} else {
			badRequest(w, "Invalid multipart upload")
		}
		return nil, nil, func() {}, false
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "File field 'file' is required")
		cleanup()
		return nil, nil, func() {}, false
	}

	if fileHeader == nil || strings.TrimSpace(fileHeader.Filename) == "" {
		file.Close()
		cleanup()
		badRequest(w, "File name is required")
		return nil, nil, func() {}, false
	}

	return file, fileHeader, cleanup, true
}

func handleBlobSaveError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, blob.ErrFileTooLarge) {
		payloadTooLarge(w, "File exceeds maximum upload size")
		return false
	}
	if errors.Is(err, blob.ErrDisallowedType) {
		badRequest(w, "Receipt photos must be images")
		return false
	}
	if errors.Is(err, blob.ErrExecutableFile) {
		badRequest(w, "Executable files are not allowed")
		return false
	}

	slog.Error("error saving blob", "error", err)
	internalError(w)
	return false
}

func isBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}
