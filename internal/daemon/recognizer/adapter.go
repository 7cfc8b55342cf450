package recognizer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxFailures = 5
	defaultBackoff     = time.Second
)

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Partials    bool          // deliver partial hypotheses, not only final results
	MaxFailures int           // consecutive engine errors before backing off
	Backoff     time.Duration // pause after MaxFailures consecutive errors
	Logger      *slog.Logger
}

// Adapter pulls frames from a FrameSource through an Engine and yields
// transcripts worth dispatching. Engine errors drop the current utterance and
// never end the stream.
type Adapter struct {
	source      FrameSource
	engine      Engine
	partials    bool
	maxFailures int
	backoff     time.Duration
	logger      *slog.Logger

	// mu serializes Feed against Reset, which is called from other goroutines.
	mu       sync.Mutex
	failures int
}

// NewAdapter creates an adapter.
func NewAdapter(source FrameSource, engine Engine, opts AdapterOptions) *Adapter {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = defaultMaxFailures
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Adapter{
		source:      source,
		engine:      engine,
		partials:    opts.Partials,
		maxFailures: opts.MaxFailures,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
	}
}

// Next blocks until the engine yields a non-empty transcript. It returns an
// error only when the frame source fails (closed or ctx done).
func (a *Adapter) Next(ctx context.Context) (Transcript, error) {
	for {
		frame, err := a.source.Pop(ctx)
		if err != nil {
			return Transcript{}, err
		}

		tr, err := a.feed(ctx, frame)
		if err != nil {
			if waitErr := a.dropUtterance(ctx, err); waitErr != nil {
				return Transcript{}, waitErr
			}
			continue
		}

		if tr.Kind == KindNone || strings.TrimSpace(tr.Text) == "" {
			continue
		}
		if tr.Kind == KindPartial && !a.partials {
			continue
		}
		return tr, nil
	}
}

// Reset discards the engine's accumulated context.
func (a *Adapter) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine.Reset(ctx)
}

// Close closes the engine.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine.Close()
}

func (a *Adapter) feed(ctx context.Context, frame []byte) (Transcript, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tr, err := a.engine.Feed(ctx, frame)
	if err != nil {
		a.failures++
		return Transcript{}, err
	}
	a.failures = 0
	return tr, nil
}

// dropUtterance drops the utterance after an engine error and backs off once too
// many errors arrive in a row.
func (a *Adapter) dropUtterance(ctx context.Context, feedErr error) error {
	a.mu.Lock()
	failures := a.failures
	resetErr := a.engine.Reset(ctx)
	if failures >= a.maxFailures {
		a.failures = 0
	}
	a.mu.Unlock()

	a.logger.Warn("recognition failed, utterance dropped", "error", feedErr, "consecutive", failures)
	if resetErr != nil {
		a.logger.Debug("engine reset failed", "error", resetErr)
	}
	if failures < a.maxFailures {
		return nil
	}

	timer := time.NewTimer(a.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
