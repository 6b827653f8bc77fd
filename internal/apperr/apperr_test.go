package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(Upstream, "op", nil))
}

func TestWrap_ClassifiesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Upstream, "storage.Put", cause)

	require.Error(t, err)
	assert.Equal(t, Upstream, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage.Put: UPSTREAM_ERROR: boom", err.Error())
}

func TestWrap_KeepsExistingKind(t *testing.T) {
	inner := New(NotFound, "storage.Get", "missing")
	err := Wrap(Upstream, "transcode.fetch", fmt.Errorf("fetch: %w", inner))

	assert.Equal(t, NotFound, KindOf(err))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIs_MatchesKindTemplate(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(InsufficientHistory, "metadata.Rollback", "need two versions"))

	assert.ErrorIs(t, err, &Error{Kind: InsufficientHistory})
	assert.NotErrorIs(t, err, &Error{Kind: Validation})
	assert.True(t, IsKind(err, InsufficientHistory))
}

func TestError_WithoutOp(t *testing.T) {
	err := &Error{Kind: Validation, Err: errors.New("filename is required")}
	assert.Equal(t, "VALIDATION_ERROR: filename is required", err.Error())
}
