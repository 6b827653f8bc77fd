package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mediavault/mediavault-api/internal/metrics"
)

// ErrProbe is returned when ffprobe cannot read the payload.
var ErrProbe = errors.New("media: probe failed")

// FFprobe implements Prober using the ffprobe CLI. The payload is piped on
// stdin so nothing touches disk.
type FFprobe struct {
	path   string
	logger *slog.Logger
}

var _ Prober = (*FFprobe)(nil)

// NewFFprobe creates a new FFprobe.
// If path is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobe(path string, logger *slog.Logger) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFprobe{path: path, logger: logger}
}

// Probe runs ffprobe over r and maps its JSON report into a ProbeResult.
func (p *FFprobe) Probe(ctx context.Context, r io.Reader) (ProbeResult, error) {
	// #nosec G204 - path is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-i", "pipe:0",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = r
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		metrics.RecordProbe(metrics.StatusError)
		if ctx.Err() != nil {
			return ProbeResult{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		p.logger.Warn("ffprobe failed",
			slog.String("error", err.Error()),
			slog.String("stderr", strings.TrimSpace(stderr.String())),
		)
		return ProbeResult{}, fmt.Errorf("%w: %w, stderr: %s", ErrProbe, err, strings.TrimSpace(stderr.String()))
	}

	result, err := ParseProbeOutput(stdout.Bytes())
	if err != nil {
		metrics.RecordProbe(metrics.StatusError)
		return ProbeResult{}, err
	}
	metrics.RecordProbe(metrics.StatusSuccess)
	return result, nil
}

type probeReport struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	FormatLongName string     `json:"format_long_name"`
	Duration       probeValue `json:"duration"`
	Size           probeValue `json:"size"`
	BitRate        probeValue `json:"bit_rate"`
}

type probeStream struct {
	CodecType  string     `json:"codec_type"`
	CodecName  string     `json:"codec_name"`
	Width      probeValue `json:"width"`
	Height     probeValue `json:"height"`
	Channels   probeValue `json:"channels"`
	SampleRate probeValue `json:"sample_rate"`
}

// probeValue holds a field ffprobe may emit as a JSON number or a string.
type probeValue struct {
	raw string
	set bool
}

func (v *probeValue) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v.raw, v.set = s, true
		return nil
	}
	v.raw, v.set = string(b), true
	return nil
}

func (v probeValue) asFloat() *float64 {
	if !v.set {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func (v probeValue) asInt64() *int64 {
	f := v.asFloat()
	if f == nil {
		return nil
	}
	n := int64(*f)
	return &n
}

func (v probeValue) asInt() *int {
	f := v.asFloat()
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ParseProbeOutput maps ffprobe's JSON report onto a ProbeResult. Only the
// first video and first audio stream are kept.
func ParseProbeOutput(data []byte) (ProbeResult, error) {
	var report probeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return ProbeResult{}, fmt.Errorf("%w: decode report: %w", ErrProbe, err)
	}

	result := ProbeResult{
		Format:   stringOrNil(report.Format.FormatLongName),
		Duration: report.Format.Duration.asFloat(),
		Size:     report.Format.Size.asInt64(),
		BitRate:  report.Format.BitRate.asInt64(),
	}

	for _, s := range report.Streams {
		switch s.CodecType {
		case "video":
			if result.Video == nil {
				result.Video = &VideoStream{
					Codec:  stringOrNil(s.CodecName),
					Width:  s.Width.asInt(),
					Height: s.Height.asInt(),
				}
			}
		case "audio":
			if result.Audio == nil {
				result.Audio = &AudioStream{
					Codec:      stringOrNil(s.CodecName),
					Channels:   s.Channels.asInt(),
					SampleRate: s.SampleRate.asInt(),
				}
			}
		}
	}

	return result, nil
}
