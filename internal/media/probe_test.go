package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2},
    {"index": 2, "codec_name": "mp3", "codec_type": "audio", "sample_rate": "44100", "channels": 1}
  ],
  "format": {
    "filename": "pipe:0",
    "format_long_name": "QuickTime / MOV",
    "duration": "12.345000",
    "size": "1048576",
    "bit_rate": "679477"
  }
}`

func TestParseProbeOutput(t *testing.T) {
	result, err := ParseProbeOutput([]byte(sampleReport))
	require.NoError(t, err)

	require.NotNil(t, result.Format)
	assert.Equal(t, "QuickTime / MOV", *result.Format)
	assert.InDelta(t, 12.345, *result.Duration, 1e-9)
	assert.Equal(t, int64(1048576), *result.Size)
	assert.Equal(t, int64(679477), *result.BitRate)

	require.NotNil(t, result.Video)
	assert.Equal(t, "h264", *result.Video.Codec)
	assert.Equal(t, 1920, *result.Video.Width)
	assert.Equal(t, 1080, *result.Video.Height)

	require.NotNil(t, result.Audio)
	assert.Equal(t, "aac", *result.Audio.Codec, "first audio stream wins")
	assert.Equal(t, 2, *result.Audio.Channels)
	assert.Equal(t, 48000, *result.Audio.SampleRate)
}

func TestParseProbeOutput_NullableFields(t *testing.T) {
	report := `{
	  "streams": [{"codec_type": "audio", "codec_name": "opus", "sample_rate": "N/A"}],
	  "format": {"duration": "N/A", "bit_rate": null}
	}`

	result, err := ParseProbeOutput([]byte(report))
	require.NoError(t, err)

	assert.Nil(t, result.Format)
	assert.Nil(t, result.Duration, "non-numeric duration must be null, not zero")
	assert.Nil(t, result.Size)
	assert.Nil(t, result.BitRate)
	assert.Nil(t, result.Video)
	require.NotNil(t, result.Audio)
	assert.Nil(t, result.Audio.Channels)
	assert.Nil(t, result.Audio.SampleRate)
}

func TestParseProbeOutput_InvalidJSON(t *testing.T) {
	_, err := ParseProbeOutput([]byte("not json"))
	assert.ErrorIs(t, err, ErrProbe)
}

func TestFFprobe_Probe(t *testing.T) {
	skipIfNoFFmpeg(t)

	path := filepath.Join(t.TempDir(), "sample.mp4")
	createTestVideo(t, path, 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	result, err := NewFFprobe("", discardLogger()).Probe(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	require.NotNil(t, result.Format)
	require.NotNil(t, result.Duration)
	assert.InDelta(t, 1.0, *result.Duration, 0.2)
	require.NotNil(t, result.Video)
	assert.Equal(t, 64, *result.Video.Width)
	require.NotNil(t, result.Audio)
	assert.Equal(t, 1, *result.Audio.Channels)
}

func TestFFprobe_ProbeGarbage(t *testing.T) {
	skipIfNoFFmpeg(t)

	_, err := NewFFprobe("", discardLogger()).Probe(context.Background(), bytes.NewReader([]byte("definitely not a video")))
	assert.ErrorIs(t, err, ErrProbe)
}
