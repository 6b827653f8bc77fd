package params

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mediavault/mediavault-api/internal/apperr"
)

// kind distinguishes Parameter Store entries from Secrets Manager entries.
type kind int

const (
	kindParameter kind = iota
	kindSecret
)

// Setting describes how one configuration value is obtained.
type Setting struct {
	// Override, when non-empty, is returned without any lookup.
	Override string
	// Name is the parameter or secret name to look up.
	Name string
}

// Names lists where each dependency setting comes from.
type Names struct {
	Bucket       Setting // Parameter Store
	Table        Setting // Parameter Store
	PartitionKey Setting // Secrets Manager
	SearchAPIKey Setting // Secrets Manager
}

type cachedValue struct {
	value     string
	fetchedAt time.Time
}

// Resolver resolves dependency settings on demand and caches them for the
// refresh interval. A zero refresh interval disables caching so every call
// performs a lookup.
type Resolver struct {
	source  Source
	names   Names
	refresh time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedValue
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRefresh sets how long a resolved value is reused before it is looked up again.
func WithRefresh(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d >= 0 {
			r.refresh = d
		}
	}
}

// WithClock overrides the time source used for cache expiry.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver reading from source.
func NewResolver(source Source, names Names, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:  source,
		names:   names,
		refresh: 5 * time.Minute,
		now:     time.Now,
		logger:  slog.Default(),
		cache:   make(map[string]cachedValue),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bucket returns the object-storage bucket name.
func (r *Resolver) Bucket(ctx context.Context) (string, error) {
	return r.resolve(ctx, "bucket", r.names.Bucket, kindParameter)
}

// Table returns the metadata table name.
func (r *Resolver) Table(ctx context.Context) (string, error) {
	return r.resolve(ctx, "table", r.names.Table, kindParameter)
}

// PartitionKey returns the name of the metadata table's partition-key attribute.
func (r *Resolver) PartitionKey(ctx context.Context) (string, error) {
	return r.resolve(ctx, "partition key", r.names.PartitionKey, kindSecret)
}

// SearchAPIKey returns the content search API key.
func (r *Resolver) SearchAPIKey(ctx context.Context) (string, error) {
	return r.resolve(ctx, "search api key", r.names.SearchAPIKey, kindSecret)
}

// Invalidate drops every cached value so the next call performs a fresh lookup.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cachedValue)
}

func (r *Resolver) resolve(ctx context.Context, label string, s Setting, k kind) (string, error) {
	const op = "params.Resolve"

	if v := strings.TrimSpace(s.Override); v != "" {
		return v, nil
	}
	if s.Name == "" {
		return "", apperr.New(apperr.ConfigResolution, op, label+": no parameter name configured")
	}

	cacheKey := fmt.Sprintf("%d:%s", k, s.Name)
	if r.refresh > 0 {
		r.mu.Lock()
		c, ok := r.cache[cacheKey]
		r.mu.Unlock()
		if ok && r.now().Sub(c.fetchedAt) < r.refresh {
			return c.value, nil
		}
	}

	var (
		value string
		err   error
	)
	switch k {
	case kindSecret:
		value, err = r.source.Secret(ctx, s.Name)
	default:
		value, err = r.source.Parameter(ctx, s.Name)
	}
	if err == nil && strings.TrimSpace(value) == "" {
		err = fmt.Errorf("%s: %w", s.Name, ErrEmptyValue)
	}
	if err != nil {
		r.logger.Error("configuration lookup failed",
			slog.String("setting", label),
			slog.String("name", s.Name),
			slog.String("error", err.Error()),
		)
		return "", apperr.Wrap(apperr.ConfigResolution, op, fmt.Errorf("resolve %s: %w", label, err))
	}

	value = strings.TrimSpace(value)
	if r.refresh > 0 {
		r.mu.Lock()
		r.cache[cacheKey] = cachedValue{value: value, fetchedAt: r.now()}
		r.mu.Unlock()
	}
	return value, nil
}
