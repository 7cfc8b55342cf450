package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Operation outcomes surfaced to callers.
var (
	ErrNotConfirmed = errors.New("launch not confirmed")
	ErrUnkillable   = errors.New("process survived every termination attempt")
	ErrUnknownState = errors.New("process state unknown")
	ErrLaunch       = errors.New("launch failed")
)

// StartResult is the successful outcome of Start.
type StartResult int

const (
	Started StartResult = iota
	AlreadyRunning
)

func (r StartResult) String() string {
	if r == AlreadyRunning {
		return "already running"
	}
	return "started"
}

// StopResult is the successful outcome of Stop.
type StopResult int

const (
	Stopped StopResult = iota
	NotRunning
)

func (r StopResult) String() string {
	if r == NotRunning {
		return "not running"
	}
	return "stopped"
}

// Indicator shows whether the managed app is running.
type Indicator interface {
	SetRunning(running bool)
}

// Launcher starts the managed app and returns without waiting for it.
type Launcher interface {
	Launch(ctx context.Context) error
}

// Terminator asks processes to exit. Both methods are fire-and-forget; the
// outcome is confirmed only by a later observation.
type Terminator interface {
	Terminate(ctx context.Context, targets []Record) error
	Kill(ctx context.Context, targets []Record) error
}

// ScriptRunner runs a last-resort termination script.
type ScriptRunner interface {
	Run(ctx context.Context, script string) error
}

// Timing holds the settle windows of the start and stop ladders.
type Timing struct {
	StartSettle  time.Duration
	StartRetry   time.Duration
	StopGrace    time.Duration
	KillSettle   time.Duration
	ScriptSettle time.Duration
}

// Options configures a Controller.
type Options struct {
	Observer        Observer
	Launcher        Launcher
	Terminator      Terminator
	Scripts         ScriptRunner
	FallbackScripts []string
	Timing          Timing
	State           *State
	Indicator       Indicator
	// OnStopped runs after a confirmed stop, still under the controller lock.
	OnStopped func(ctx context.Context)
	Logger    *slog.Logger
}

// Controller starts and stops the managed app. All operations hold one
// controller-wide lock for their whole duration, so start and stop sequences
// never interleave.
type Controller struct {
	mu sync.Mutex

	observer  Observer
	launcher  Launcher
	term      Terminator
	scripts   ScriptRunner
	fallback  []string
	timing    Timing
	state     *State
	indicator Indicator
	onStopped func(ctx context.Context)
	logger    *slog.Logger
}

// NewController creates a controller.
func NewController(opts Options) *Controller {
	if opts.State == nil {
		opts.State = NewState(nil)
	}
	if opts.Indicator == nil {
		opts.Indicator = noIndicator{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		observer:  opts.Observer,
		launcher:  opts.Launcher,
		term:      opts.Terminator,
		scripts:   opts.Scripts,
		fallback:  append([]string(nil), opts.FallbackScripts...),
		timing:    opts.Timing,
		state:     opts.State,
		indicator: opts.Indicator,
		onStopped: opts.OnStopped,
		logger:    opts.Logger,
	}
}

// State returns the shared state the controller maintains.
func (c *Controller) State() *State { return c.state }

// Start launches the managed app unless exactly one instance is running.
// Duplicate instances are stopped first.
func (c *Controller) Start(ctx context.Context) (StartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start(ctx)
}

// Stop terminates every instance of the managed app, escalating from a
// graceful request to a forced kill to the fallback scripts.
func (c *Controller) Stop(ctx context.Context) (StopResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop(ctx)
}

// Tx gives code running under Exclusive the controller's operations without
// re-acquiring the lock. It must not be used after fn returns.
type Tx struct {
	c *Controller
}

// Exclusive runs fn while holding the controller lock.
func (c *Controller) Exclusive(fn func(tx *Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(&Tx{c: c})
}

// Observe takes a fresh observation and records it in the state.
func (tx *Tx) Observe(ctx context.Context) (Observation, error) { return tx.c.observe(ctx) }

// Start is Controller.Start without locking.
func (tx *Tx) Start(ctx context.Context) (StartResult, error) { return tx.c.start(ctx) }

// Stop is Controller.Stop without locking.
func (tx *Tx) Stop(ctx context.Context) (StopResult, error) { return tx.c.stop(ctx) }

// Settle aligns the phase and the indicator with an observation of zero or
// one instances. Other counts are left for Start or Stop to resolve.
func (tx *Tx) Settle(obs Observation) {
	switch obs.Cardinality() {
	case None:
		tx.c.finish(Idle, nil, false)
	case One:
		tx.c.finish(Running, nil, true)
	}
}

func (c *Controller) start(ctx context.Context) (StartResult, error) {
	obs, err := c.observe(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnknownState, err)
	}

	switch obs.Cardinality() {
	case One:
		c.finish(Running, nil, true)
		return AlreadyRunning, nil
	case Many:
		c.logger.Warn("duplicate instances before start, stopping them", "count", obs.Count(), "pids", obs.PIDs())
		if _, err := c.escalate(ctx, obs); err != nil {
			return 0, fmt.Errorf("clearing duplicate instances: %w", err)
		}
	}

	c.state.setPhase(Starting)
	if err := c.launcher.Launch(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrLaunch, err)
		c.finish(Idle, err, false)
		return 0, err
	}
	c.logger.Info("launch command issued")

	for attempt, wait := range []time.Duration{c.timing.StartSettle, c.timing.StartRetry} {
		if err := sleep(ctx, wait); err != nil {
			c.finish(Idle, err, false)
			return 0, err
		}
		obs, err := c.observe(ctx)
		if err != nil {
			c.logger.Warn("observation failed while confirming start", "attempt", attempt+1, "error", err)
			continue
		}
		if obs.Cardinality() == One {
			c.logger.Info("start confirmed", "pid", obs.Records[0].PID, "attempt", attempt+1)
			c.finish(Running, nil, true)
			return Started, nil
		}
		c.logger.Debug("start not yet visible", "attempt", attempt+1, "count", obs.Count())
	}

	c.finish(Idle, ErrNotConfirmed, false)
	return 0, ErrNotConfirmed
}

func (c *Controller) stop(ctx context.Context) (StopResult, error) {
	obs, err := c.observe(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnknownState, err)
	}
	if obs.Cardinality() == None {
		c.finish(Idle, nil, false)
		return NotRunning, nil
	}
	return c.escalate(ctx, obs)
}

// escalate runs the stop ladder against the processes found in obs. Each
// step targets the processes seen by the observation that followed the
// previous step; a failed observation ends the ladder with ErrUnknownState.
func (c *Controller) escalate(ctx context.Context, obs Observation) (StopResult, error) {
	c.state.setPhase(Stopping)

	type step struct {
		name   string
		settle time.Duration
		run    func(targets []Record) error
	}
	steps := []step{
		{"terminate", c.timing.StopGrace, func(t []Record) error { return c.term.Terminate(ctx, t) }},
		{"kill", c.timing.KillSettle, func(t []Record) error { return c.term.Kill(ctx, t) }},
	}
	if c.scripts != nil {
		for _, script := range c.fallback {
			steps = append(steps, step{"script " + script, c.timing.ScriptSettle, func([]Record) error {
				return c.scripts.Run(ctx, script)
			}})
		}
	}

	targets := obs.Records
	for _, s := range steps {
		c.logger.Info("stop step", "step", s.name, "pids", Observation{Records: targets}.PIDs())
		if err := s.run(targets); err != nil {
			c.logger.Warn("stop step failed", "step", s.name, "error", err)
		}
		if err := sleep(ctx, s.settle); err != nil {
			c.finish(Running, err, true)
			return 0, err
		}

		// Without a fresh observation the next step would aim at PIDs that
		// may have been reused, so the ladder stops here.
		latest, err := c.observe(ctx)
		if err != nil {
			c.logger.Error("observation failed while confirming stop, stop abandoned", "step", s.name, "error", err)
			err = fmt.Errorf("%w: %w", ErrUnknownState, err)
			c.finish(Running, err, true)
			return 0, err
		}
		if latest.Cardinality() == None {
			c.logger.Info("stop confirmed", "step", s.name)
			c.finish(Idle, nil, false)
			if c.onStopped != nil {
				c.onStopped(ctx)
			}
			return Stopped, nil
		}
		targets = latest.Records
	}

	c.logger.Error("managed app could not be stopped", "pids", Observation{Records: targets}.PIDs())
	c.finish(Running, ErrUnkillable, true)
	return 0, ErrUnkillable
}

func (c *Controller) observe(ctx context.Context) (Observation, error) {
	obs, err := c.observer.Observe(ctx)
	if err != nil {
		c.state.unknown(err, time.Now())
		return Observation{}, err
	}
	c.state.observed(obs)
	return obs, nil
}

func (c *Controller) finish(p Phase, err error, running bool) {
	c.state.finish(p, err)
	c.indicator.SetRunning(running)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noIndicator struct{}

func (noIndicator) SetRunning(bool) {}
