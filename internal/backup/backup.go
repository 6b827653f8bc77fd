// Package backup snapshots stored objects under a backup prefix and restores
// them. It never touches metadata.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mediavault/mediavault-api/internal/apperr"
	"github.com/mediavault/mediavault-api/internal/storage"
)

// Prefix is the key prefix under which backups are written.
const Prefix = "backup/"

// Manager copies objects to and from backup keys.
type Manager struct {
	objects storage.ObjectStore
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used to name backups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new Manager.
func NewManager(objects storage.ObjectStore, opts ...Option) *Manager {
	m := &Manager{
		objects: objects,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BackupKey returns the backup key for key taken at t.
func BackupKey(key string, t time.Time) string {
	return fmt.Sprintf("%s%d-%s", Prefix, t.UnixMilli(), key)
}

// Backup copies key to a new timestamped backup key and returns it.
func (m *Manager) Backup(ctx context.Context, key string) (string, error) {
	const op = "backup.Backup"

	if strings.TrimSpace(key) == "" {
		return "", apperr.New(apperr.Validation, op, "key is required")
	}

	backupKey := BackupKey(key, m.now())
	if err := m.objects.Copy(ctx, key, backupKey); err != nil {
		return "", classify(op, err)
	}

	m.logger.Info("object backed up",
		slog.String("key", key),
		slog.String("backup_key", backupKey),
	)
	return backupKey, nil
}

// Restore overwrites key with the content of backupKey.
func (m *Manager) Restore(ctx context.Context, key, backupKey string) error {
	const op = "backup.Restore"

	if strings.TrimSpace(key) == "" || strings.TrimSpace(backupKey) == "" {
		return apperr.New(apperr.Validation, op, "key and backupKey are required")
	}

	if err := m.objects.Copy(ctx, backupKey, key); err != nil {
		return classify(op, err)
	}

	m.logger.Info("object restored",
		slog.String("key", key),
		slog.String("backup_key", backupKey),
	)
	return nil
}

func classify(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Wrap(apperr.NotFound, op, err)
	}
	return apperr.Wrap(apperr.Upstream, op, err)
}
