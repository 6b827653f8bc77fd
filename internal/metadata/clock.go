package metadata

import (
	"sync"
	"time"
)

// Clock hands out version identifiers.
type Clock interface {
	// Next returns a version greater than any previously returned.
	Next() int64
}

// MonotonicClock issues Unix-millisecond versions that strictly increase
// within the process. Two calls in the same millisecond, or a wall clock that
// steps backwards, yield last+1.
type MonotonicClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewMonotonicClock creates a MonotonicClock over now. A nil now uses time.Now.
func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

// Next returns the next version.
func (c *MonotonicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.now().UnixMilli()
	if v <= c.last {
		v = c.last + 1
	}
	c.last = v
	return v
}
