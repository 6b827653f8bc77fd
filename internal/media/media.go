// Package media wraps the ffprobe and ffmpeg command-line tools: probing
// uploaded payloads into technical metadata, and encoding MP4 renditions at a
// fixed set of target qualities.
package media

import (
	"context"
	"io"
)

// Prober extracts technical metadata from a media payload.
type Prober interface {
	// Probe reads the payload from r and returns its metadata.
	// Returns an error wrapping ErrProbe when the payload cannot be probed.
	Probe(ctx context.Context, r io.Reader) (ProbeResult, error)
}

// Encoder produces an MP4 rendition of a local file.
type Encoder interface {
	// Encode transcodes job.Input into job.Output at job.Quality.
	// Returns *FFmpegError if the encoder exits unsuccessfully.
	Encode(ctx context.Context, job EncodeJob) error
}

// ProbeResult is the technical metadata recorded for a stored file. Numeric
// fields are nil when the prober omits them or reports a non-numeric value.
type ProbeResult struct {
	Format   *string      `json:"format" dynamodbav:"format"`
	Duration *float64     `json:"duration" dynamodbav:"duration"`
	Size     *int64       `json:"size" dynamodbav:"size"`
	BitRate  *int64       `json:"bit_rate" dynamodbav:"bit_rate"`
	Video    *VideoStream `json:"video" dynamodbav:"video"`
	Audio    *AudioStream `json:"audio" dynamodbav:"audio"`
}

// VideoStream describes the first video stream.
type VideoStream struct {
	Codec  *string `json:"codec" dynamodbav:"codec"`
	Width  *int    `json:"width" dynamodbav:"width"`
	Height *int    `json:"height" dynamodbav:"height"`
}

// AudioStream describes the first audio stream.
type AudioStream struct {
	Codec      *string `json:"codec" dynamodbav:"codec"`
	Channels   *int    `json:"channels" dynamodbav:"channels"`
	SampleRate *int    `json:"sample_rate" dynamodbav:"sample_rate"`
}
