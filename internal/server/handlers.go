package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/mediavault/mediavault-api/internal/apperr"
	"github.com/mediavault/mediavault-api/internal/ingest"
	"github.com/mediavault/mediavault-api/internal/media"
	"github.com/mediavault/mediavault-api/internal/metadata"
	"github.com/mediavault/mediavault-api/internal/recommend"
	"github.com/mediavault/mediavault-api/internal/storage"
	"github.com/mediavault/mediavault-api/internal/transcode"
)

// DefaultMaxUploadBytes caps the size of an uploaded file.
const DefaultMaxUploadBytes int64 = 1 << 30

// uploadField is the multipart form field carrying the file.
const uploadField = "file"

// Uploader ingests a new file.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (ingest.Result, error)
}

// Versions manages the metadata version history.
type Versions interface {
	AppendVersion(ctx context.Context, filename string, probe media.ProbeResult) (int64, error)
	Rollback(ctx context.Context, filename string) (metadata.RollbackResult, error)
	Latest(ctx context.Context, filename string) (metadata.Record, bool, error)
	History(ctx context.Context, filename string) ([]metadata.Record, error)
}

// Transcoder produces renditions on demand.
type Transcoder interface {
	Transcode(ctx context.Context, req transcode.Request, d transcode.Deliverer) error
}

// Backups copies objects to and from backup keys.
type Backups interface {
	Backup(ctx context.Context, key string) (string, error)
	Restore(ctx context.Context, key, backupKey string) error
}

// Recommender looks up articles related to a filename.
type Recommender interface {
	Recommend(ctx context.Context, filename string) (recommend.Recommendations, error)
}

// Services groups the components the handlers delegate to.
type Services struct {
	Uploader    Uploader
	Versions    Versions
	Transcoder  Transcoder
	Backups     Backups
	Recommender Recommender
	Objects     storage.ObjectStore
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	svc            Services
	validator      *validator.Validate
	logger         *slog.Logger
	presignTTL     time.Duration
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithPresignTTL sets the lifetime of presigned download URLs.
func WithPresignTTL(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		if d > 0 {
			h.presignTTL = d
		}
	}
}

// WithMaxUploadBytes sets the upload size limit.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Services, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		svc:            svc,
		validator:      validator.New(),
		logger:         logger,
		presignTTL:     time.Hour,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Upload handles POST /api/vid/file/upload requests.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit", "FILE_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "no file uploaded", string(apperr.Validation))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Warn("failed to read upload", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "failed to read uploaded file", string(apperr.Validation))
		return
	}

	res, err := h.svc.Uploader.Upload(r.Context(), header.Filename, data)
	if err != nil {
		h.fail(w, r, "upload failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Message:         "Upload successful",
		StoredKey:       res.StoredKey,
		MetadataVersion: res.MetadataVersion,
		Metadata:        res.Probe,
	})
}

// Download handles GET /api/vid/file/{id}/download requests. With
// ?presignURL=true it returns a time-limited URL instead of the bytes.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")

	if presign, _ := strconv.ParseBool(r.URL.Query().Get("presignURL")); presign {
		url, err := h.svc.Objects.PresignGet(r.Context(), key, h.presignTTL)
		if err != nil {
			h.fail(w, r, "presign failed", objectError("server.Download", err))
			return
		}
		writeJSON(w, http.StatusOK, PresignResponse{URL: url, ExpiresIn: int64(h.presignTTL.Seconds())})
		return
	}

	obj, err := h.svc.Objects.Get(r.Context(), key)
	if err != nil {
		h.fail(w, r, "download failed", objectError("server.Download", err))
		return
	}
	defer func() { _ = obj.Body.Close() }()

	body := io.Reader(obj.Body)
	contentType := obj.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		head := make([]byte, 3072)
		n, _ := io.ReadFull(obj.Body, head)
		head = head[:n]
		contentType = mimetype.Detect(head).String()
		body = io.MultiReader(bytes.NewReader(head), obj.Body)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", key))
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("download interrupted",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func objectError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Wrap(apperr.NotFound, op, err)
	}
	return apperr.Wrap(apperr.Upstream, op, err)
}

// Metadata handles GET /api/vid/file/{id}/metadata requests.
func (h *Handlers) Metadata(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("id")

	rec, ok, err := h.svc.Versions.Latest(r.Context(), filename)
	if err != nil {
		h.fail(w, r, "metadata lookup failed", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no metadata for "+filename, string(apperr.NotFound))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Versions handles GET /api/vid/file/{id}/metadata/versions requests.
func (h *Handlers) Versions(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("id")

	history, err := h.svc.Versions.History(r.Context(), filename)
	if err != nil {
		h.fail(w, r, "metadata history failed", err)
		return
	}
	if history == nil {
		history = []metadata.Record{}
	}
	writeJSON(w, http.StatusOK, VersionsResponse{Filename: filename, Versions: history})
}

// Transcode handles GET /api/vid/file/{id}/transcode requests and streams
// the rendition back in the response body.
func (h *Handlers) Transcode(w http.ResponseWriter, r *http.Request) {
	rw := wrapResponseWriter(w)
	req := transcode.Request{
		Key:     r.PathValue("id"),
		Quality: r.URL.Query().Get("quality"),
	}

	err := h.svc.Transcoder.Transcode(r.Context(), req, transcode.DelivererFunc(func(_ context.Context, rend transcode.Rendition) error {
		return serveFile(rw, rend)
	}))
	if err == nil {
		return
	}
	if rw.wroteHeader {
		h.logger.Error("transcode delivery failed after response started",
			slog.String("key", req.Key),
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		return
	}
	if errors.Is(err, transcode.ErrDelivery) {
		h.logger.Error("transcode delivery failed", slog.String("key", req.Key), slog.String("error", err.Error()))
		writeError(rw, http.StatusInternalServerError, "failed to send transcoded file", "DELIVERY_ERROR")
		return
	}
	h.fail(rw, r, "transcode failed", err)
}

func serveFile(w http.ResponseWriter, rend transcode.Rendition) error {
	f, err := os.Open(rend.Path)
	if err != nil {
		return fmt.Errorf("open rendition: %w", err)
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", rend.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rend.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(rend.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("stream rendition: %w", err)
	}
	return nil
}

// Recommendations handles GET /api/vid/file/{id}/article-recommendations requests.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	recs, err := h.svc.Recommender.Recommend(r.Context(), id)
	if err != nil {
		h.fail(w, r, "recommendations failed", err)
		return
	}
	urls := recs.URLs
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{ID: id, Query: recs.Query, URLs: urls})
}

// StoreMetadata handles POST /api/manage/metadata/store requests.
func (h *Handlers) StoreMetadata(w http.ResponseWriter, r *http.Request) {
	var req StoreMetadataRequest
	if !h.decode(w, r, &req) {
		return
	}

	version, err := h.svc.Versions.AppendVersion(r.Context(), req.Filename, *req.Metadata)
	if err != nil {
		h.fail(w, r, "store metadata failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, StoreMetadataResponse{
		Message:  "Metadata version stored",
		Filename: req.Filename,
		Version:  version,
	})
}

// Rollback handles POST /api/manage/metadata/rollback requests.
func (h *Handlers) Rollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Versions.Rollback(r.Context(), req.Filename)
	if err != nil {
		h.fail(w, r, "rollback failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RollbackResponse{
		Message:      "Rolled back metadata",
		Filename:     res.Filename,
		RestoredFrom: res.RestoredFrom,
		Version:      res.Version,
	})
}

// Backup handles POST /api/manage/file/backup requests.
func (h *Handlers) Backup(w http.ResponseWriter, r *http.Request) {
	var req BackupRequest
	if !h.decode(w, r, &req) {
		return
	}

	backupKey, err := h.svc.Backups.Backup(r.Context(), req.Key)
	if err != nil {
		h.fail(w, r, "backup failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, BackupResponse{
		Message:   "Backup created",
		Key:       req.Key,
		BackupKey: backupKey,
	})
}

// Restore handles POST /api/manage/file/restore requests.
func (h *Handlers) Restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.Backups.Restore(r.Context(), req.Key, req.BackupKey); err != nil {
		h.fail(w, r, "restore failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RestoreResponse{Message: "File restored", Key: req.Key})
}

// decode reads and validates a JSON body. It writes the error response and
// returns false when the body is unusable.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), string(apperr.Validation))
		return false
	}
	return true
}

// fail logs err and writes the response matching its kind.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, attrs...)
	} else {
		h.logger.Warn(msg, attrs...)
	}

	code := string(apperr.KindOf(err))
	if code == "" {
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
		return
	}
	writeError(w, status, err.Error(), code)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.Validation, apperr.UnsupportedQuality, apperr.InsufficientHistory:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Probe:
		return http.StatusUnprocessableEntity
	case apperr.Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
