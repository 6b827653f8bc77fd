// Package transcode produces MP4 renditions of stored media on demand.
// Every request stages its source and output in scratch space, and both
// files are removed when the request finishes, however it finishes.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/mediavault/mediavault-api/internal/apperr"
	"github.com/mediavault/mediavault-api/internal/media"
	"github.com/mediavault/mediavault-api/internal/metrics"
	"github.com/mediavault/mediavault-api/internal/storage"
)

// ErrDelivery marks a failure while handing the rendition to the caller.
// The caller may already have started its response.
var ErrDelivery = errors.New("transcode: delivery failed")

// ContentType is the content type of every rendition.
const ContentType = "video/mp4"

// Request identifies the source object and the target quality. An empty
// quality selects media.DefaultQuality.
type Request struct {
	Key     string
	Quality string
}

// Rendition is an encoded file ready to be sent.
type Rendition struct {
	Path        string
	Name        string
	ContentType string
	Quality     media.Quality
	Size        int64
}

// Deliverer sends a finished rendition to the caller. The file at
// Rendition.Path is removed as soon as Deliver returns.
type Deliverer interface {
	Deliver(ctx context.Context, r Rendition) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, r Rendition) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, r Rendition) error {
	return f(ctx, r)
}

// Scratch is the local staging area used by the engine.
type Scratch interface {
	Reserve(prefix, name string) string
	SaveTemp(ctx context.Context, prefix, name string, data io.Reader) (string, error)
	CleanupTemp(paths ...string) error
}

// Engine runs transcoding requests.
type Engine struct {
	objects  storage.ObjectStore
	scratch  Scratch
	encoder  media.Encoder
	logger   *slog.Logger
	observer func(State)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStateObserver registers a callback invoked on every state change.
func WithStateObserver(fn func(State)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// NewEngine creates a new Engine.
func NewEngine(objects storage.ObjectStore, scratch Scratch, encoder media.Encoder, opts ...Option) *Engine {
	e := &Engine{
		objects: objects,
		scratch: scratch,
		encoder: encoder,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RenditionName returns the filename hint for key encoded at q, e.g.
// "clip.mov" at 720 gives "clip-720p.mp4".
func RenditionName(key string, q media.Quality) string {
	base := path.Base(strings.ReplaceAll(key, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "video"
	}
	return fmt.Sprintf("%s-%dp.mp4", stem, q)
}

// Transcode fetches req.Key, encodes it at req.Quality and passes the result
// to d. The quality is validated before any I/O. Encoding is not interrupted
// when ctx is cancelled; scratch files are removed on every return path.
func (e *Engine) Transcode(ctx context.Context, req Request, d Deliverer) (err error) {
	const op = "transcode.Transcode"

	q, err := media.ParseQuality(req.Quality)
	if err != nil {
		return apperr.Wrap(apperr.UnsupportedQuality, op, err)
	}
	if strings.TrimSpace(req.Key) == "" {
		return apperr.New(apperr.Validation, op, "key is required")
	}

	start := time.Now()
	logger := e.logger.With(slog.String("key", req.Key), slog.Int("quality", int(q)))
	r := newRun(e.observer, logger)

	var inPath, outPath string
	defer func() {
		_ = r.advance(StateCleanup)
		if cerr := e.scratch.CleanupTemp(inPath, outPath); cerr != nil {
			logger.Warn("scratch cleanup failed", slog.String("error", cerr.Error()))
		}
		_ = r.advance(StateDone)
		metrics.RecordTranscode(q.String(), metrics.Status(err), time.Since(start).Seconds())
	}()

	obj, err := e.objects.Get(ctx, req.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, op, err)
		}
		return apperr.Wrap(apperr.Upstream, op, err)
	}

	_ = r.advance(StateStageLocal)
	inPath, err = e.scratch.SaveTemp(ctx, storage.PrefixInput, req.Key, obj.Body)
	_ = obj.Body.Close()
	if err != nil {
		return apperr.Wrap(apperr.Upstream, op, fmt.Errorf("stage source: %w", err))
	}

	_ = r.advance(StateEncode)
	outPath = e.scratch.Reserve(storage.PrefixOutput, fmt.Sprintf("%dp.mp4", q))
	err = e.encoder.Encode(context.WithoutCancel(ctx), media.EncodeJob{
		Input:   inPath,
		Output:  outPath,
		Quality: q,
		Progress: func(p media.Progress) {
			if p.Done {
				logger.Info("encoder reported completion", slog.Duration("out_time", p.OutTime))
			}
		},
	})
	if err != nil {
		logger.Error("encode failed", slog.String("error", err.Error()))
		return apperr.Wrap(apperr.Transcode, op, err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return apperr.Wrap(apperr.Transcode, op, fmt.Errorf("encoder produced no output: %w", err))
	}

	_ = r.advance(StateStreamResult)
	rendition := Rendition{
		Path:        outPath,
		Name:        RenditionName(req.Key, q),
		ContentType: ContentType,
		Quality:     q,
		Size:        info.Size(),
	}
	if err := d.Deliver(ctx, rendition); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDelivery, rendition.Name, err)
	}

	logger.Info("transcode delivered",
		slog.String("rendition", rendition.Name),
		slog.Int64("bytes", rendition.Size),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
