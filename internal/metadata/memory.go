package metadata

import (
	"context"
	"fmt"
	"sync"
)

type recordKey struct {
	owner    string
	filename string
}

// MemoryStore is an in-memory Store implementation.
// It is safe for concurrent use and returns copies of stored records.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]map[int64]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]map[int64]Record)}
}

// Put stores a copy of rec.
func (s *MemoryStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{owner: rec.Owner, filename: rec.Filename}
	versions, ok := s.records[k]
	if !ok {
		versions = make(map[int64]Record)
		s.records[k] = versions
	}
	if _, exists := versions[rec.Version]; exists {
		return fmt.Errorf("%s@%d: %w", rec.Filename, rec.Version, ErrVersionExists)
	}
	versions[rec.Version] = cloneRecord(rec)
	return nil
}

// Query returns copies of every version for (owner, filename).
func (s *MemoryStore) Query(ctx context.Context, owner, filename string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.records[recordKey{owner: owner, filename: filename}]
	out := make([]Record, 0, len(versions))
	for _, rec := range versions {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

// Latest returns a copy of the highest version for (owner, filename).
func (s *MemoryStore) Latest(ctx context.Context, owner, filename string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest Record
		found  bool
	)
	for _, rec := range s.records[recordKey{owner: owner, filename: filename}] {
		if !found || rec.Version > latest.Version {
			latest, found = rec, true
		}
	}
	if !found {
		return Record{}, false, nil
	}
	return cloneRecord(latest), true, nil
}

// cloneRecord deep-copies the nullable fields so callers cannot mutate
// stored state through shared pointers.
func cloneRecord(r Record) Record {
	c := r
	c.Format = clonePtr(r.Format)
	c.Duration = clonePtr(r.Duration)
	c.Size = clonePtr(r.Size)
	c.BitRate = clonePtr(r.BitRate)
	if r.Video != nil {
		v := *r.Video
		v.Codec = clonePtr(v.Codec)
		v.Width = clonePtr(v.Width)
		v.Height = clonePtr(v.Height)
		c.Video = &v
	}
	if r.Audio != nil {
		a := *r.Audio
		a.Codec = clonePtr(a.Codec)
		a.Channels = clonePtr(a.Channels)
		a.SampleRate = clonePtr(a.SampleRate)
		c.Audio = &a
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
