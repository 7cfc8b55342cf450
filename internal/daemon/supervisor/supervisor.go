// Package supervisor wires the listening pipeline, the process controller,
// the reconciler, and the indicator into one daemon.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/motioninput/mimonitor/internal/config"
	"github.com/motioninput/mimonitor/internal/daemon/audio"
	"github.com/motioninput/mimonitor/internal/daemon/phrase"
	"github.com/motioninput/mimonitor/internal/daemon/process"
	"github.com/motioninput/mimonitor/internal/daemon/reconciler"
	"github.com/motioninput/mimonitor/internal/daemon/recognizer"
	"github.com/motioninput/mimonitor/internal/daemon/watcher"
	"github.com/motioninput/mimonitor/internal/logging"
	"github.com/motioninput/mimonitor/internal/models"
)

// Mailbox delivers control request events; *watcher.Watcher satisfies it.
type Mailbox interface {
	Events() <-chan watcher.Event
}

// Options holds the settings and the OS boundaries the supervisor drives.
type Options struct {
	Settings   *models.Settings
	Frames     recognizer.FrameSource
	Engine     recognizer.Engine
	Observer   process.Observer
	Launcher   process.Launcher
	Terminator process.Terminator
	Scripts    process.ScriptRunner
	Indicator  process.Indicator
	Mailbox    Mailbox // optional
	// SaveStatus persists status snapshots. Defaults to config.SaveStatus.
	SaveStatus func(*models.StatusFile) error
	Logger     *slog.Logger
}

// Supervisor owns every component and the state they share.
type Supervisor struct {
	settings   *models.Settings
	adapter    *recognizer.Adapter
	dispatcher *phrase.Dispatcher
	ctrl       *process.Controller
	reconciler *reconciler.Reconciler
	indicator  *trackingIndicator
	mailbox    Mailbox
	saveStatus func(*models.StatusFile) error
	logger     *slog.Logger

	statusMu    sync.Mutex
	lastRequest *models.RequestOutcome

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New builds a supervisor from opts.
func New(opts Options) (*Supervisor, error) {
	if opts.Settings == nil {
		return nil, errors.New("supervisor: settings are required")
	}
	if opts.Frames == nil || opts.Engine == nil {
		return nil, errors.New("supervisor: an audio source and a speech engine are required")
	}
	if opts.Observer == nil || opts.Launcher == nil || opts.Terminator == nil {
		return nil, errors.New("supervisor: process observer, launcher and terminator are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SaveStatus == nil {
		opts.SaveStatus = config.SaveStatus
	}

	phrases, err := phrase.NewSet(opts.Settings.Phrases)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	s := &Supervisor{
		settings:   opts.Settings,
		mailbox:    opts.Mailbox,
		saveStatus: opts.SaveStatus,
		logger:     opts.Logger,
	}

	s.indicator = &trackingIndicator{inner: opts.Indicator, onChange: s.indicatorChanged}
	s.adapter = recognizer.NewAdapter(opts.Frames, opts.Engine, recognizer.AdapterOptions{
		Partials: opts.Settings.Recognizer.Partials,
		Logger:   logging.Component(opts.Logger, "recognizer"),
	})
	s.dispatcher = phrase.NewDispatcher(phrases, s.adapter, logging.Component(opts.Logger, "dispatcher"))

	timing := opts.Settings.Timing
	s.ctrl = process.NewController(process.Options{
		Observer:        opts.Observer,
		Launcher:        opts.Launcher,
		Terminator:      opts.Terminator,
		Scripts:         opts.Scripts,
		FallbackScripts: opts.Settings.Scripts.Fallback,
		Timing: process.Timing{
			StartSettle:  timing.StartSettle,
			StartRetry:   timing.StartRetry,
			StopGrace:    timing.StopGrace,
			KillSettle:   timing.KillSettle,
			ScriptSettle: timing.ScriptSettle,
		},
		State:     process.NewState(s.stateChanged),
		Indicator: s.indicator,
		OnStopped: s.resetRecognizer,
		Logger:    logging.Component(opts.Logger, "controller"),
	})
	s.reconciler = reconciler.New(s.ctrl, timing.PollInterval, logging.Component(opts.Logger, "reconciler"))

	return s, nil
}

// Controller returns the process controller.
func (s *Supervisor) Controller() *process.Controller { return s.ctrl }

// Run starts the listening pipeline, the reconciler and the mailbox consumer,
// and blocks until ctx is cancelled or Shutdown is called.
func (s *Supervisor) Run(ctx context.Context) error {
	s.runMu.Lock()
	if s.cancel != nil {
		s.runMu.Unlock()
		return errors.New("supervisor: already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})
	s.runMu.Unlock()
	defer close(s.stopped)

	s.logger.Info("supervisor started",
		"app", s.settings.App.Name,
		"executable", s.settings.App.Executable,
		"poll_interval", s.settings.Timing.PollInterval.String())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.reconciler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		defer logging.LogPanic("consumer", func(any) { cancel() })
		s.consume(ctx)
	}()
	if s.mailbox != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer logging.LogPanic("mailbox", nil)
			s.serveMailbox(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()

	if err := s.adapter.Close(); err != nil {
		s.logger.Debug("closing speech engine", "error", err)
	}
	s.logger.Info("supervisor stopped")
	return nil
}

// Shutdown stops Run and waits for it to return. The managed app is left as it is.
func (s *Supervisor) Shutdown() {
	s.runMu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// Handle carries out an intent from any source under the controller lock.
func (s *Supervisor) Handle(ctx context.Context, intent phrase.Intent) error {
	var err error
	switch intent.Kind {
	case phrase.StartRequested:
		_, err = s.Start(ctx, intent.Source)
	case phrase.StopRequested:
		_, err = s.Stop(ctx, intent.Source)
	}
	return err
}

// Start starts the managed app on behalf of src.
func (s *Supervisor) Start(ctx context.Context, src phrase.Source) (process.StartResult, error) {
	log := s.logger.With("intent", phrase.StartRequested.String(), "source", string(src))
	res, err := s.ctrl.Start(ctx)
	if err != nil {
		log.Error("start failed", "error", err)
		return res, err
	}
	log.Info("start handled", "result", res.String())
	return res, nil
}

// Stop stops the managed app on behalf of src.
func (s *Supervisor) Stop(ctx context.Context, src phrase.Source) (process.StopResult, error) {
	log := s.logger.With("intent", phrase.StopRequested.String(), "source", string(src))
	res, err := s.ctrl.Stop(ctx)
	if err != nil {
		log.Error("stop failed", "error", err)
		return res, err
	}
	log.Info("stop handled", "result", res.String())
	return res, nil
}

// Status returns the current supervisor state in its persisted form.
func (s *Supervisor) Status() *models.StatusFile {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.statusLocked()
}

// consume drains transcripts and dispatches intents until the audio source
// ends.
func (s *Supervisor) consume(ctx context.Context) {
	for {
		tr, err := s.adapter.Next(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, audio.ErrClosed) {
				s.logger.Error("audio source failed, no longer listening", "error", err)
			}
			return
		}

		s.logger.Debug("transcript", "kind", tr.Kind.String(), "text", tr.Text)
		intent := s.dispatcher.Dispatch(ctx, tr.Text)
		if intent.Kind == phrase.None {
			continue
		}
		_ = s.Handle(ctx, intent)
	}
}

func (s *Supervisor) serveMailbox(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.mailbox.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case watcher.EventSettingsChanged:
				s.logger.Info("settings file changed, restart the daemon to apply", "path", ev.Path)
			case watcher.EventRequest:
				s.handleRequest(ctx, ev.Path)
			}
		}
	}
}

func (s *Supervisor) handleRequest(ctx context.Context, path string) {
	req, err := config.TakeRequest(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		s.logger.Warn("discarded control request", "path", path, "error", err)
		return
	}

	outcome := &models.RequestOutcome{ID: req.ID, Action: req.Action}
	if req.Expired(time.Now(), config.RequestTTL) {
		s.logger.Warn("discarded expired control request", "id", req.ID, "action", req.Action,
			"requested_at", req.RequestedAt)
		outcome.Error = errRequestExpired.Error()
		s.recordOutcome(outcome)
		return
	}

	s.logger.Info("control request received", "id", req.ID, "action", req.Action)
	var result fmt.Stringer
	if req.Action == models.ActionStop {
		result, err = s.Stop(ctx, phrase.SourceCLI)
	} else {
		result, err = s.Start(ctx, phrase.SourceCLI)
	}
	if err != nil {
		outcome.Error = err.Error()
	} else {
		outcome.Result = result.String()
	}
	s.recordOutcome(outcome)
}

var errRequestExpired = errors.New("request expired before the daemon picked it up")

// recordOutcome publishes the outcome of a mailbox request in the status file
// so the submitter can find its own result.
func (s *Supervisor) recordOutcome(o *models.RequestOutcome) {
	o.HandledAt = time.Now().UTC()
	s.statusMu.Lock()
	s.lastRequest = o
	s.statusMu.Unlock()
	s.persistStatus()
}

func (s *Supervisor) resetRecognizer(ctx context.Context) {
	if err := s.adapter.Reset(ctx); err != nil {
		s.logger.Debug("recognizer reset after stop failed", "error", err)
	}
}

func (s *Supervisor) stateChanged(process.Snapshot) { s.persistStatus() }

func (s *Supervisor) indicatorChanged(bool) { s.persistStatus() }

func (s *Supervisor) persistStatus() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	if err := s.saveStatus(s.statusLocked()); err != nil {
		s.logger.Debug("failed to persist status", "error", err)
	}
}

func (s *Supervisor) statusLocked() *models.StatusFile {
	snap := s.ctrl.State().Snapshot()
	status := &models.StatusFile{
		Version:   1,
		App:       s.settings.App.Name,
		Phase:     snap.Phase.String(),
		Instances: snap.Count,
		Indicator: s.indicator.Running(),
		LastError: snap.LastError,
		UpdatedAt: time.Now().UTC(),
	}
	if s.lastRequest != nil {
		last := *s.lastRequest
		status.LastRequest = &last
	}
	return status
}

// trackingIndicator remembers the last state sent to the real indicator.
type trackingIndicator struct {
	inner    process.Indicator
	onChange func(bool)

	mu      sync.Mutex
	running bool
	set     bool
}

func (t *trackingIndicator) SetRunning(running bool) {
	t.mu.Lock()
	changed := !t.set || t.running != running
	t.running, t.set = running, true
	t.mu.Unlock()

	if t.inner != nil {
		t.inner.SetRunning(running)
	}
	if changed && t.onChange != nil {
		t.onChange(running)
	}
}

func (t *trackingIndicator) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
