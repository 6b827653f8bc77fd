// Package ingest accepts uploaded media, stores it and records its first
// metadata version.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mediavault/mediavault-api/internal/apperr"
	"github.com/mediavault/mediavault-api/internal/media"
	"github.com/mediavault/mediavault-api/internal/metrics"
	"github.com/mediavault/mediavault-api/internal/storage"
)

// VersionAppender records a new metadata version for a file.
type VersionAppender interface {
	AppendVersion(ctx context.Context, filename string, probe media.ProbeResult) (int64, error)
}

// Result describes a completed upload.
type Result struct {
	StoredKey       string            `json:"storedKey"`
	MetadataVersion int64             `json:"metadataVersion"`
	ContentType     string            `json:"contentType"`
	Probe           media.ProbeResult `json:"metadata"`
}

// Orchestrator runs the upload pipeline: probe, store the object, then
// append metadata. The two writes are not atomic; a metadata failure after
// the object write is reported as a partial write.
type Orchestrator struct {
	prober   media.Prober
	objects  storage.ObjectStore
	versions VersionAppender
	logger   *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(prober media.Prober, objects storage.ObjectStore, versions VersionAppender, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		prober:   prober,
		objects:  objects,
		versions: versions,
		logger:   logger,
	}
}

// StorageKey derives the object key for an uploaded filename. Directory
// components are dropped so a client cannot address arbitrary prefixes.
func StorageKey(filename string) string {
	name := strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// Upload stores data under its filename and records its probed metadata.
func (o *Orchestrator) Upload(ctx context.Context, filename string, data []byte) (res Result, err error) {
	const op = "ingest.Upload"

	key := StorageKey(filename)
	if key == "" {
		return Result{}, apperr.New(apperr.Validation, op, "filename is required")
	}
	if len(data) == 0 {
		return Result{}, apperr.New(apperr.Validation, op, "file is empty")
	}

	contentType := mimetype.Detect(data).String()
	defer func() { metrics.RecordUpload(contentType, metrics.Status(err), int64(len(data))) }()

	logger := o.logger.With(slog.String("key", key), slog.Int("bytes", len(data)))

	probe, err := o.prober.Probe(ctx, bytes.NewReader(data))
	if err != nil {
		logger.Warn("upload rejected: probe failed", slog.String("error", err.Error()))
		return Result{}, apperr.Wrap(apperr.Probe, op, err)
	}

	if err := o.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		logger.Error("object write failed", slog.String("error", err.Error()))
		return Result{}, apperr.Wrap(apperr.Upstream, op, err)
	}

	version, err := o.versions.AppendVersion(ctx, key, probe)
	if err != nil {
		logger.Error("metadata append failed after object write",
			slog.String("error", err.Error()),
		)
		return Result{}, &apperr.Error{
			Kind: apperr.PartialWrite,
			Op:   op,
			Err:  fmt.Errorf("object %s stored but metadata append failed: %w", key, err),
		}
	}

	logger.Info("upload stored",
		slog.String("content_type", contentType),
		slog.Int64("version", version),
	)
	return Result{
		StoredKey:       key,
		MetadataVersion: version,
		ContentType:     contentType,
		Probe:           probe,
	}, nil
}
