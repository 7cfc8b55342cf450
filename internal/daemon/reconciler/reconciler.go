// Package reconciler polls the process table and corrects drift between the
// managed app's observed instances and the indicator.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/motioninput/mimonitor/internal/daemon/process"
	"github.com/motioninput/mimonitor/internal/logging"
)

// Action is what a tick did.
type Action int

const (
	NoAction  Action = iota // observation failed; nothing touched
	Indicated               // zero or one instance; indicator aligned
	Restarted               // duplicates collapsed with Stop then Start
)

func (a Action) String() string {
	switch a {
	case Indicated:
		return "indicated"
	case Restarted:
		return "restarted"
	default:
		return "none"
	}
}

// Report describes one tick.
type Report struct {
	Count  int // -1 when the observation failed
	Action Action
}

// Reconciler runs a tick every interval for as long as its context lives.
type Reconciler struct {
	ctrl     *process.Controller
	interval time.Duration
	logger   *slog.Logger
}

// New creates a reconciler over the controller's lock and state.
func New(ctrl *process.Controller, interval time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{ctrl: ctrl, interval: interval, logger: logger}
}

// Run ticks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	defer logging.LogPanic("reconciler", nil)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tickAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tickAndLog(ctx)
		}
	}
}

func (r *Reconciler) tickAndLog(ctx context.Context) {
	rep, err := r.Tick(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("reconcile tick failed", "count", rep.Count, "action", rep.Action.String(), "error", err)
		}
		return
	}
	if rep.Action == Restarted {
		r.logger.Info("duplicate instances collapsed", "count", rep.Count)
	}
}

// Tick takes one fresh observation under the controller lock and acts on it:
// none or one instance aligns the indicator, more than one restarts the app,
// and a failed observation changes nothing.
func (r *Reconciler) Tick(ctx context.Context) (Report, error) {
	rep := Report{Count: -1}
	err := r.ctrl.Exclusive(func(tx *process.Tx) error {
		obs, err := tx.Observe(ctx)
		if err != nil {
			return err
		}
		rep.Count = obs.Count()

		if obs.Cardinality() != process.Many {
			tx.Settle(obs)
			rep.Action = Indicated
			return nil
		}

		r.logger.Warn("duplicate instances detected", "count", obs.Count(), "pids", obs.PIDs())
		rep.Action = Restarted
		if _, err := tx.Stop(ctx); err != nil {
			return err
		}
		_, err = tx.Start(ctx)
		return err
	})
	return rep, err
}
