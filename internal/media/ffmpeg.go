package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// EncodeJob describes a single rendition to produce.
type EncodeJob struct {
	Input    string
	Output   string
	Quality  Quality
	Progress ProgressFunc // Optional
}

// Progress is one progress report emitted by ffmpeg.
type Progress struct {
	Frame   int64
	OutTime time.Duration
	Speed   string
	Done    bool
}

// ProgressFunc receives encoder progress. It must not block.
type ProgressFunc func(Progress)

// FFmpeg implements Encoder using the ffmpeg CLI.
type FFmpeg struct {
	path   string
	logger *slog.Logger
}

var _ Encoder = (*FFmpeg)(nil)

// NewFFmpeg creates a new FFmpeg encoder.
// If path is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpeg(path string, logger *slog.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{path: path, logger: logger}
}

// EncodeArgs returns the ffmpeg arguments for job. The encoding policy is
// fixed: H.264 high profile, AAC audio, fast-start MP4.
func EncodeArgs(job EncodeJob) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-analyzeduration", "200M",
		"-probesize", "200M",
		"-i", job.Input,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-s", job.Quality.Size(),
		"-profile:v", "high",
		"-preset", "veryfast",
		"-movflags", "+faststart",
		"-pix_fmt", "yuv420p",
		"-crf", "23",
		"-progress", "pipe:1",
		"-nostats",
		"-f", "mp4",
		job.Output,
	}
}

// Encode runs ffmpeg for job and blocks until it exits.
func (f *FFmpeg) Encode(ctx context.Context, job EncodeJob) error {
	if !job.Quality.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedQuality, job.Quality)
	}

	args := EncodeArgs(job)
	// #nosec G204 - path is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}

	f.logger.Info("encoder started",
		slog.String("command", f.path+" "+strings.Join(args, " ")),
		slog.Int("quality", int(job.Quality)),
	)

	if err := cmd.Start(); err != nil {
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}

	f.readProgress(stdout, job)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	f.logger.Info("encoder finished",
		slog.String("output", job.Output),
		slog.Int("quality", int(job.Quality)),
	)
	return nil
}

// readProgress consumes ffmpeg's key=value progress stream until EOF.
func (f *FFmpeg) readProgress(r io.Reader, job EncodeJob) {
	var current Progress
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		if !applyProgress(&current, key, value) {
			continue
		}
		f.logger.Debug("encoder progress",
			slog.Int64("frame", current.Frame),
			slog.Duration("out_time", current.OutTime),
			slog.String("speed", current.Speed),
			slog.Bool("done", current.Done),
		)
		if job.Progress != nil {
			job.Progress(current)
		}
	}
	// Drain so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// applyProgress folds one key=value pair into p. It reports true when the
// pair closes a progress block.
func applyProgress(p *Progress, key, value string) bool {
	switch key {
	case "frame":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.Frame = n
		}
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.OutTime = time.Duration(n) * time.Microsecond
		}
	case "speed":
		p.Speed = value
	case "progress":
		p.Done = value == "end"
		return true
	}
	return false
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

const maxStderrTail = 2048

func (e *FFmpegError) Error() string {
	stderr := e.Stderr
	if len(stderr) > maxStderrTail {
		stderr = "..." + stderr[len(stderr)-maxStderrTail:]
	}
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
