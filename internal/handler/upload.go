package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/csvdeck/csvdeck/internal/service"
)

// maxMemory is how much of a multipart upload is buffered in memory before
// spilling to a temp file.
const maxMemory = 32 << 20

// UploadHandler accepts CSV files as multipart uploads.
type UploadHandler struct {
	ingest   *service.IngestService
	maxBytes int64
	logger   *slog.Logger
}

// NewUploadHandler creates a new UploadHandler. maxBytes caps the request
// body; 0 means no cap.
func NewUploadHandler(ingest *service.IngestService, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{ingest: ingest, maxBytes: maxBytes, logger: logger}
}

// Upload creates a table from the "file" form field.
// POST /upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, "file exceeds the upload size limit")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "No file part")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "No file part")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "No selected file")
		return
	}

	res, err := h.ingest.Ingest(r.Context(), header.Filename, file)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
