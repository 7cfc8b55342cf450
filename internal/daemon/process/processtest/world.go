// Package processtest provides in-memory stand-ins for the OS boundaries of
// package process.
package processtest

import (
	"context"
	"sync"
	"time"

	"github.com/motioninput/mimonitor/internal/daemon/process"
)

// Step is one scripted observation.
type Step struct {
	Count int
	Err   error
}

// World simulates the process table and the commands that change it. In
// scripted mode Observe replays Steps (the last one repeats); otherwise it
// reports the live count, which the On* hooks change.
type World struct {
	// Name of simulated processes.
	Name string
	// LaunchErr fails every Launch.
	LaunchErr error
	// Hooks map the current count to the count after a command. Nil leaves
	// the count unchanged.
	OnLaunch    func(count int) int
	OnTerminate func(count int) int
	OnKill      func(count int) int
	OnScript    func(count int) int
	// Delay is spent inside every command to widen race windows.
	Delay time.Duration

	mu       sync.Mutex
	steps    []Step
	scripted bool
	count    int
	observes int

	launches, terminates, kills, scripts int
	terminateTargets, killTargets        [][]int32
	active, maxActive                    int
}

// NewWorld returns a live world with count running instances.
func NewWorld(count int) *World {
	return &World{Name: "MI_app.exe", count: count}
}

// NewScripted returns a world whose observations follow steps.
func NewScripted(steps ...Step) *World {
	return &World{Name: "MI_app.exe", steps: steps, scripted: true}
}

// Counts is shorthand for NewScripted with error-free steps.
func Counts(counts ...int) *World {
	steps := make([]Step, len(counts))
	for i, c := range counts {
		steps[i] = Step{Count: c}
	}
	return NewScripted(steps...)
}

// Observe implements process.Observer.
func (w *World) Observe(ctx context.Context) (process.Observation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	k := w.observes
	w.observes++

	count := w.count
	base := int32(100)
	if w.scripted {
		i := k
		if i >= len(w.steps) {
			i = len(w.steps) - 1
		}
		if i < 0 {
			return process.Observation{TakenAt: time.Now()}, nil
		}
		if err := w.steps[i].Err; err != nil {
			return process.Observation{}, err
		}
		count = w.steps[i].Count
		base = int32(1000 * (k + 1))
	}

	obs := process.Observation{TakenAt: time.Now()}
	for i := 0; i < count; i++ {
		obs.Records = append(obs.Records, process.Record{Name: w.Name, PID: base + int32(i), Status: "running"})
	}
	return obs, nil
}

// Launch implements process.Launcher.
func (w *World) Launch(ctx context.Context) error {
	return w.command(func() error {
		w.launches++
		if w.LaunchErr != nil {
			return w.LaunchErr
		}
		w.apply(w.OnLaunch)
		return nil
	})
}

// Terminate implements process.Terminator.
func (w *World) Terminate(ctx context.Context, targets []process.Record) error {
	return w.command(func() error {
		w.terminates++
		w.terminateTargets = append(w.terminateTargets, pids(targets))
		w.apply(w.OnTerminate)
		return nil
	})
}

// Kill implements process.Terminator.
func (w *World) Kill(ctx context.Context, targets []process.Record) error {
	return w.command(func() error {
		w.kills++
		w.killTargets = append(w.killTargets, pids(targets))
		w.apply(w.OnKill)
		return nil
	})
}

// Run implements process.ScriptRunner.
func (w *World) Run(ctx context.Context, script string) error {
	return w.command(func() error {
		w.scripts++
		w.apply(w.OnScript)
		return nil
	})
}

func (w *World) command(fn func() error) error {
	w.mu.Lock()
	w.active++
	if w.active > w.maxActive {
		w.maxActive = w.active
	}
	w.mu.Unlock()

	if w.Delay > 0 {
		time.Sleep(w.Delay)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.active--
	return fn()
}

func (w *World) apply(hook func(int) int) {
	if hook != nil {
		w.count = hook(w.count)
	}
}

// SetCount changes the live instance count.
func (w *World) SetCount(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count = n
}

// Count returns the live instance count.
func (w *World) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Observes returns how many observations were taken.
func (w *World) Observes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.observes
}

// Launches returns how many launch commands were issued.
func (w *World) Launches() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.launches
}

// Terminates returns how many graceful terminate commands were issued.
func (w *World) Terminates() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminates
}

// Kills returns how many forced kill commands were issued.
func (w *World) Kills() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.kills
}

// Scripts returns how many fallback scripts were run.
func (w *World) Scripts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scripts
}

// TerminateTargets returns the PIDs passed to each Terminate call.
func (w *World) TerminateTargets() [][]int32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]int32(nil), w.terminateTargets...)
}

// KillTargets returns the PIDs passed to each Kill call.
func (w *World) KillTargets() [][]int32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]int32(nil), w.killTargets...)
}

// MaxActive returns the largest number of commands that ran at once.
func (w *World) MaxActive() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxActive
}

func pids(records []process.Record) []int32 {
	return process.Observation{Records: records}.PIDs()
}

// Indicator records every SetRunning call.
type Indicator struct {
	mu    sync.Mutex
	calls []bool
}

// SetRunning implements process.Indicator.
func (i *Indicator) SetRunning(running bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, running)
}

// Calls returns every value passed to SetRunning.
func (i *Indicator) Calls() []bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]bool(nil), i.calls...)
}

// Last returns the most recent value, and false if none was set.
func (i *Indicator) Last() (running, ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.calls) == 0 {
		return false, false
	}
	return i.calls[len(i.calls)-1], true
}

// Transitions returns the distinct values in call order with repeats collapsed.
func (i *Indicator) Transitions() []bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []bool
	for _, c := range i.calls {
		if len(out) == 0 || out[len(out)-1] != c {
			out = append(out, c)
		}
	}
	return out
}
