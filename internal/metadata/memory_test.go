package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/mediavault-api/internal/media"
)

func ptr[T any](v T) *T { return &v }

func TestMemoryStore_PutAndQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, Record{Owner: "o", Filename: "a.mp4", Version: 1}))
	require.NoError(t, s.Put(ctx, Record{Owner: "o", Filename: "a.mp4", Version: 2}))
	require.NoError(t, s.Put(ctx, Record{Owner: "o", Filename: "b.mp4", Version: 3}))
	require.NoError(t, s.Put(ctx, Record{Owner: "other", Filename: "a.mp4", Version: 4}))

	got, err := s.Query(ctx, "o", "a.mp4")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.Query(ctx, "o", "missing.mp4")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_DuplicateVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, Record{Owner: "o", Filename: "a.mp4", Version: 1}))
	err := s.Put(ctx, Record{Owner: "o", Filename: "a.mp4", Version: 1})
	assert.ErrorIs(t, err, ErrVersionExists)
}

func TestMemoryStore_Latest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Latest(ctx, "o", "a.mp4")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, Record{Owner: "o", Filename: "a.mp4", Version: 5}))
	require.NoError(t, s.Put(ctx, Record{Owner: "o", Filename: "a.mp4", Version: 9}))
	require.NoError(t, s.Put(ctx, Record{Owner: "o", Filename: "a.mp4", Version: 7}))

	rec, ok, err := s.Latest(ctx, "o", "a.mp4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(9), rec.Version)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := Record{
		Owner:    "o",
		Filename: "a.mp4",
		Version:  1,
		ProbeResult: media.ProbeResult{
			Duration: ptr(12.4),
			Video:    &media.VideoStream{Width: ptr(1920)},
		},
	}
	require.NoError(t, s.Put(ctx, rec))
	*rec.Duration = 99

	got, _, err := s.Latest(ctx, "o", "a.mp4")
	require.NoError(t, err)
	assert.Equal(t, 12.4, *got.Duration)

	*got.Video.Width = 1
	again, _, _ := s.Latest(ctx, "o", "a.mp4")
	assert.Equal(t, 1920, *again.Video.Width)
}
