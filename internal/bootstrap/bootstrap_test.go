package bootstrap

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/mediavault-api/internal/config"
)

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		OwnerID:            "owner-1",
		StoreBackend:       config.BackendMemory,
		TempDir:            t.TempDir(),
		PresignTTL:         time.Hour,
		ParamBucketName:    "/mv/bucket",
		ParamTableName:     "/mv/table",
		SecretPartitionKey: "mv/pk",
		SecretSearchAPIKey: "mv/search",
		ParamRefresh:       time.Minute,
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		SearchBaseURL:      "http://localhost:0",
	}
}

func TestNewDependencies_Memory(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, err := NewDependencies(ctx, memoryConfig(t), logger)
	require.NoError(t, err)

	svc := deps.Services
	assert.NotNil(t, svc.Uploader)
	assert.NotNil(t, svc.Versions)
	assert.NotNil(t, svc.Transcoder)
	assert.NotNil(t, svc.Backups)
	assert.NotNil(t, svc.Recommender)
	require.NotNil(t, svc.Objects)

	bucket, err := deps.Resolver.Bucket(ctx)
	require.NoError(t, err)
	assert.Equal(t, memoryBucket, bucket)

	require.NoError(t, svc.Objects.Put(ctx, "clip.mp4", bytes.NewReader([]byte("x")), 1, "video/mp4"))
	key, err := svc.Backups.Backup(ctx, "clip.mp4")
	require.NoError(t, err)
	assert.Contains(t, key, "backup/")
}

func TestNewDependencies_OverridesWin(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.S3Bucket = "explicit-bucket"

	deps, err := NewDependencies(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	bucket, err := deps.Resolver.Bucket(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "explicit-bucket", bucket)
}
