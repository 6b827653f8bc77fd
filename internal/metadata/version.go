package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mediavault/mediavault-api/internal/apperr"
	"github.com/mediavault/mediavault-api/internal/media"
	"github.com/mediavault/mediavault-api/internal/metrics"
)

// RollbackResult reports the outcome of a rollback.
type RollbackResult struct {
	Filename     string `json:"filename"`
	RestoredFrom int64  `json:"restoredFrom"`
	Version      int64  `json:"version"`
}

// VersionStore manages the append-only version history of each file's
// metadata under a single owner identity.
type VersionStore struct {
	store  Store
	owner  string
	clock  Clock
	logger *slog.Logger
}

// VersionStoreOption configures a VersionStore.
type VersionStoreOption func(*VersionStore)

// WithClock sets the version clock.
func WithClock(c Clock) VersionStoreOption {
	return func(v *VersionStore) {
		if c != nil {
			v.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) VersionStoreOption {
	return func(v *VersionStore) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVersionStore creates a VersionStore for owner on top of store.
func NewVersionStore(store Store, owner string, opts ...VersionStoreOption) *VersionStore {
	v := &VersionStore{
		store:  store,
		owner:  owner,
		clock:  NewMonotonicClock(nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Owner returns the partition identity records are written under.
func (v *VersionStore) Owner() string {
	return v.owner
}

// AppendVersion records probe as a new version of filename and returns the
// version assigned.
func (v *VersionStore) AppendVersion(ctx context.Context, filename string, probe media.ProbeResult) (int64, error) {
	const op = "metadata.AppendVersion"

	if strings.TrimSpace(filename) == "" {
		return 0, apperr.New(apperr.Validation, op, "filename is required")
	}

	rec := Record{
		Owner:       v.owner,
		Filename:    filename,
		Version:     v.clock.Next(),
		ProbeResult: probe,
	}
	if err := v.store.Put(ctx, rec); err != nil {
		return 0, apperr.Wrap(apperr.Upstream, op, err)
	}

	v.logger.Info("metadata version appended",
		slog.String("filename", filename),
		slog.Int64("version", rec.Version),
	)
	return rec.Version, nil
}

// Rollback copies the second-most-recent version of filename into a new
// version. History is never deleted.
func (v *VersionStore) Rollback(ctx context.Context, filename string) (result RollbackResult, err error) {
	const op = "metadata.Rollback"
	defer func() { metrics.RecordRollback(metrics.Status(err)) }()

	if strings.TrimSpace(filename) == "" {
		return RollbackResult{}, apperr.New(apperr.Validation, op, "filename is required")
	}

	history, err := v.History(ctx, filename)
	if err != nil {
		return RollbackResult{}, err
	}
	if len(history) < 2 {
		return RollbackResult{}, apperr.New(apperr.InsufficientHistory, op,
			fmt.Sprintf("%s has %d version(s), rollback needs at least 2", filename, len(history)))
	}

	previous := history[1]
	restored := previous
	restored.Owner = v.owner
	restored.Version = v.clock.Next()

	if err := v.store.Put(ctx, restored); err != nil {
		return RollbackResult{}, apperr.Wrap(apperr.Upstream, op, err)
	}

	v.logger.Info("metadata rolled back",
		slog.String("filename", filename),
		slog.Int64("restored_from", previous.Version),
		slog.Int64("version", restored.Version),
	)
	return RollbackResult{
		Filename:     filename,
		RestoredFrom: previous.Version,
		Version:      restored.Version,
	}, nil
}

// Latest returns the newest version of filename. The boolean is false when
// no metadata has been stored yet.
func (v *VersionStore) Latest(ctx context.Context, filename string) (Record, bool, error) {
	const op = "metadata.Latest"

	if strings.TrimSpace(filename) == "" {
		return Record{}, false, apperr.New(apperr.Validation, op, "filename is required")
	}

	rec, ok, err := v.store.Latest(ctx, v.owner, filename)
	if err != nil {
		return Record{}, false, apperr.Wrap(apperr.Upstream, op, err)
	}
	return rec, ok, nil
}

// History returns every version of filename, newest first.
func (v *VersionStore) History(ctx context.Context, filename string) ([]Record, error) {
	const op = "metadata.History"

	if strings.TrimSpace(filename) == "" {
		return nil, apperr.New(apperr.Validation, op, "filename is required")
	}

	records, err := v.store.Query(ctx, v.owner, filename)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream, op, err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Version > records[j].Version
	})
	return records, nil
}
