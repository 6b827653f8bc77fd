package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Staging name prefixes.
const (
	PrefixInput  = "in"
	PrefixOutput = "out"
)

var (
	entropy     *ulid.MonotonicEntropy
	entropyOnce sync.Once
	entropyMu   sync.Mutex
)

func newULID(t time.Time) string {
	entropyOnce.Do(func() {
		entropy = ulid.Monotonic(rand.Reader, 0)
	})
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// LocalStorage manages scratch files on local disk. Every path it hands out
// lives directly under its directory and is unique across concurrent callers.
type LocalStorage struct {
	tempDir string
	now     func() time.Time
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, a mediavault directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "mediavault")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir, now: time.Now}, nil
}

// TempDir returns the scratch directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// Reserve returns a fresh path of the form <prefix>_<unixmillis>_<ulid>_<name>
// without creating the file. Only the base of name is kept.
func (s *LocalStorage) Reserve(prefix, name string) string {
	now := s.now()
	base := sanitize(name)
	parts := []string{prefix, strconv.FormatInt(now.UnixMilli(), 10), newULID(now)}
	if base != "" {
		parts = append(parts, base)
	}
	return filepath.Join(s.tempDir, strings.Join(parts, "_"))
}

// SaveTemp writes data to a newly reserved path and returns it.
// The file is removed if writing fails.
func (s *LocalStorage) SaveTemp(ctx context.Context, prefix, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	path := s.Reserve(prefix, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600) // #nosec G304 - path built by Reserve
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return path, nil
}

// CleanupTemp removes the given paths. Missing files and empty paths are
// ignored. It keeps going after failures and returns them joined.
// Cleanup is best-effort and never depends on ctx.
func (s *LocalStorage) CleanupTemp(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove temp file %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func sanitize(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}
