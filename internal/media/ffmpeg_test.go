package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestVideo creates a small fast-start MP4 with a video and a silent audio stream.
func createTestVideo(t *testing.T, path string, duration float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=blue:s=64x64:d=%.1f", duration),
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.1f", duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-shortest",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewFFmpeg(t *testing.T) {
	assert.Equal(t, "ffmpeg", NewFFmpeg("", nil).path)
	assert.Equal(t, "/usr/local/bin/ffmpeg", NewFFmpeg("/usr/local/bin/ffmpeg", nil).path)
}

func TestEncodeArgs(t *testing.T) {
	args := EncodeArgs(EncodeJob{Input: "/tmp/in.mov", Output: "/tmp/out.mp4", Quality: Quality720})
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-analyzeduration 200M -probesize 200M",
		"-i /tmp/in.mov",
		"-c:v libx264",
		"-c:a aac",
		"-s 1280x720",
		"-profile:v high",
		"-preset veryfast",
		"-movflags +faststart",
		"-pix_fmt yuv420p",
		"-crf 23",
		"-f mp4",
	} {
		assert.Contains(t, joined, want)
	}
	assert.Equal(t, "/tmp/out.mp4", args[len(args)-1])
}

func TestApplyProgress(t *testing.T) {
	var p Progress
	lines := []string{
		"frame=42",
		"out_time_us=1500000",
		"speed=2.5x",
		"progress=continue",
	}

	var closed []bool
	for _, l := range lines {
		k, v, _ := strings.Cut(l, "=")
		closed = append(closed, applyProgress(&p, k, v))
	}

	assert.Equal(t, []bool{false, false, false, true}, closed)
	assert.Equal(t, int64(42), p.Frame)
	assert.Equal(t, 1500*time.Millisecond, p.OutTime)
	assert.Equal(t, "2.5x", p.Speed)
	assert.False(t, p.Done)

	assert.True(t, applyProgress(&p, "progress", "end"))
	assert.True(t, p.Done)
}

func TestFFmpeg_EncodeRejectsUnknownQuality(t *testing.T) {
	err := NewFFmpeg("", discardLogger()).Encode(context.Background(), EncodeJob{Quality: 999})
	assert.ErrorIs(t, err, ErrUnsupportedQuality)
}

func TestFFmpeg_Encode(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "output.mp4")
	createTestVideo(t, input, 1)

	var reports []Progress
	enc := NewFFmpeg("", discardLogger())
	err := enc.Encode(context.Background(), EncodeJob{
		Input:    input,
		Output:   output,
		Quality:  Quality480,
		Progress: func(p Progress) { reports = append(reports, p) },
	})
	require.NoError(t, err)

	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.NotEmpty(t, reports)
	assert.True(t, reports[len(reports)-1].Done)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()

	result, err := NewFFprobe("", discardLogger()).Probe(context.Background(), f)
	require.NoError(t, err)
	require.NotNil(t, result.Video)
	assert.Equal(t, 854, *result.Video.Width)
	assert.Equal(t, 480, *result.Video.Height)
	assert.Equal(t, "h264", *result.Video.Codec)
}

func TestFFmpeg_EncodeMissingInput(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	err := NewFFmpeg("", discardLogger()).Encode(context.Background(), EncodeJob{
		Input:   filepath.Join(dir, "missing.mp4"),
		Output:  filepath.Join(dir, "out.mp4"),
		Quality: Quality480,
	})

	var ffErr *FFmpegError
	require.True(t, errors.As(err, &ffErr), "expected *FFmpegError, got %T", err)
	assert.NotEmpty(t, ffErr.Stderr)
}

func TestFFmpegError(t *testing.T) {
	innerErr := errors.New("exit status 1")
	ffErr := &FFmpegError{
		Args:   []string{"-i", "input.mp4", "output.mp4"},
		Stderr: "Error opening input file",
		Err:    innerErr,
	}

	msg := ffErr.Error()
	assert.Contains(t, msg, "exit status 1")
	assert.Contains(t, msg, "Error opening input file")
	assert.ErrorIs(t, ffErr, innerErr)

	long := &FFmpegError{Stderr: strings.Repeat("x", 5000) + "tail", Err: innerErr}
	assert.Contains(t, long.Error(), "...")
	assert.True(t, strings.HasSuffix(long.Error(), "tail"))
}
