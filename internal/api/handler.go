// Package api exposes the statement pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/NavisaGlobal2/digitbooks-sub002/internal/extraction"
	"github.com/NavisaGlobal2/digitbooks-sub002/internal/logger"
)

// DefaultMaxUploadBytes is the upload limit when none is configured.
const DefaultMaxUploadBytes = 20 << 20

// multipartOverhead leaves room for form fields around the file part.
const multipartOverhead = 1 << 20

// StatementProcessor runs the extraction pipeline.
type StatementProcessor interface {
	ProcessStatement(ctx context.Context, data []byte, fileType extraction.FileType,
		pctx extraction.ProcessingContext, preferred extraction.ProviderID) (*extraction.StatementResult, error)
}

// Handler serves statement uploads.
type Handler struct {
	svc      StatementProcessor
	maxBytes int64
	log      zerolog.Logger

	jobs   *extraction.JobStore
	jobCtx context.Context
}

// NewHandler creates a statement upload handler.
func NewHandler(svc StatementProcessor, maxBytes int64, log zerolog.Logger) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Handler{svc: svc, maxBytes: maxBytes, log: logger.WithComponent(log, "api")}
}

// EnableJobs turns on the async job endpoints. Jobs run under ctx, so
// cancelling it aborts in-flight jobs.
func (h *Handler) EnableJobs(ctx context.Context, jobs *extraction.JobStore) {
	h.jobCtx = ctx
	h.jobs = jobs
}

// Routes registers the API endpoints on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/statements/extract", h.ExtractStatement)
	if h.jobs != nil {
		mux.HandleFunc("POST /api/v1/statements/jobs", h.SubmitJob)
		mux.HandleFunc("GET /api/v1/statements/jobs/{id}", h.GetJob)
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

type upload struct {
	filename  string
	data      []byte
	fileType  extraction.FileType
	pctx      extraction.ProcessingContext
	preferred extraction.ProviderID
}

// readUpload parses the multipart form. It writes the error response and
// returns false when the upload is unusable.
// Form fields: file (required), file_type, context, provider.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, string(extraction.ErrInvalidDocument), "upload exceeds size limit")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, string(extraction.ErrInvalidDocument), "expected multipart form with a file field")
		return nil, false
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, string(extraction.ErrInvalidDocument), "file is required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(extraction.ErrInvalidDocument), "could not read file")
		return nil, false
	}
	if int64(len(data)) > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, string(extraction.ErrInvalidDocument), "upload exceeds size limit")
		return nil, false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, string(extraction.ErrInvalidDocument), "file is empty")
		return nil, false
	}

	fileType := extraction.DetectFileType(header.Filename, data)
	if ft := strings.TrimSpace(r.FormValue("file_type")); ft != "" {
		fileType = extraction.ParseFileType(ft)
		if fileType == extraction.FileTypeUnknown {
			writeError(w, http.StatusUnsupportedMediaType, string(extraction.ErrUnsupportedFileType), "unsupported file_type "+ft)
			return nil, false
		}
	}
	return &upload{
		filename:  header.Filename,
		data:      data,
		fileType:  fileType,
		pctx:      extraction.ParseProcessingContext(r.FormValue("context")),
		preferred: extraction.ProviderID(strings.ToLower(strings.TrimSpace(r.FormValue("provider")))),
	}, true
}

// ExtractStatement handles POST /api/v1/statements/extract.
func (h *Handler) ExtractStatement(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	ctx := logger.WithContext(r.Context(), h.log)
	result, err := h.svc.ProcessStatement(ctx, up.data, up.fileType, up.pctx, up.preferred)
	if err != nil {
		h.log.Warn().Err(err).Str("file", up.filename).Msg("statement processing aborted")
		writeError(w, http.StatusServiceUnavailable, "CANCELLED", "request cancelled")
		return
	}

	h.logResult(up, result)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) logResult(up *upload, result *extraction.StatementResult) {
	h.log.Info().
		Str("file", up.filename).
		Str("file_type", string(up.fileType)).
		Str("source", result.Source).
		Str("provider", string(result.ProviderUsed)).
		Int("transactions", len(result.Transactions)).
		Bool("truncated", result.Truncated).
		Msg("statement processed")
}
