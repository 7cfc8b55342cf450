package process_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/motioninput/mimonitor/internal/daemon/process"
	"github.com/motioninput/mimonitor/internal/daemon/process/processtest"
)

type harness struct {
	world     *processtest.World
	indicator *processtest.Indicator
	ctrl      *process.Controller
	stopped   int
}

func newHarness(world *processtest.World, scripts ...string) *harness {
	h := &harness{world: world, indicator: &processtest.Indicator{}}
	h.ctrl = process.NewController(process.Options{
		Observer:        world,
		Launcher:        world,
		Terminator:      world,
		Scripts:         world,
		FallbackScripts: scripts,
		Indicator:       h.indicator,
		OnStopped:       func(context.Context) { h.stopped++ },
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

func TestStartAlreadyRunningIssuesNoLaunch(t *testing.T) {
	h := newHarness(processtest.Counts(1))

	res, err := h.ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res != process.AlreadyRunning {
		t.Errorf("Start() = %v, want AlreadyRunning", res)
	}
	if h.world.Launches() != 0 {
		t.Errorf("launches = %d, want 0", h.world.Launches())
	}
	if got, _ := h.indicator.Last(); !got {
		t.Error("indicator not set running")
	}
	if p := h.ctrl.State().Snapshot().Phase; p != process.Running {
		t.Errorf("phase = %v, want running", p)
	}
}

func TestStopNotRunningIssuesNoTermination(t *testing.T) {
	h := newHarness(processtest.Counts(0), "/opt/forced_exit.sh")

	res, err := h.ctrl.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if res != process.NotRunning {
		t.Errorf("Stop() = %v, want NotRunning", res)
	}
	if n := h.world.Terminates() + h.world.Kills() + h.world.Scripts(); n != 0 {
		t.Errorf("termination commands = %d, want 0", n)
	}
	if h.stopped != 0 {
		t.Errorf("OnStopped calls = %d, want 0", h.stopped)
	}
}

func TestStartConfirmation(t *testing.T) {
	tests := []struct {
		name         string
		counts       []int
		wantErr      error
		wantObserves int
		wantRunning  bool
	}{
		{"confirmed after first settle", []int{0, 1}, nil, 2, true},
		{"confirmed after retry", []int{0, 0, 1}, nil, 3, true},
		{"never visible", []int{0, 0, 0}, process.ErrNotConfirmed, 3, false},
		{"duplicates after launch", []int{0, 2, 2}, process.ErrNotConfirmed, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(processtest.Counts(tt.counts...))

			res, err := h.ctrl.Start(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && res != process.Started {
				t.Errorf("Start() = %v, want Started", res)
			}
			if h.world.Launches() != 1 {
				t.Errorf("launches = %d, want 1", h.world.Launches())
			}
			if h.world.Observes() != tt.wantObserves {
				t.Errorf("observations = %d, want %d", h.world.Observes(), tt.wantObserves)
			}
			if got, _ := h.indicator.Last(); got != tt.wantRunning {
				t.Errorf("indicator = %v, want %v", got, tt.wantRunning)
			}

			snap := h.ctrl.State().Snapshot()
			wantPhase := process.Idle
			if tt.wantRunning {
				wantPhase = process.Running
			}
			if snap.Phase != wantPhase {
				t.Errorf("phase = %v, want %v", snap.Phase, wantPhase)
			}
			if tt.wantErr != nil && snap.LastError == "" {
				t.Error("LastError not recorded")
			}
		})
	}
}

func TestStartUnknownStateIssuesNoLaunch(t *testing.T) {
	h := newHarness(processtest.NewScripted(processtest.Step{Err: errors.New("access denied")}))

	_, err := h.ctrl.Start(context.Background())
	if !errors.Is(err, process.ErrUnknownState) {
		t.Fatalf("Start() error = %v, want ErrUnknownState", err)
	}
	if h.world.Launches() != 0 {
		t.Errorf("launches = %d, want 0", h.world.Launches())
	}
	if snap := h.ctrl.State().Snapshot(); snap.Count != -1 {
		t.Errorf("count = %d, want -1 for unknown", snap.Count)
	}
}

func TestStopUnknownStateIssuesNoTermination(t *testing.T) {
	h := newHarness(processtest.NewScripted(processtest.Step{Err: errors.New("access denied")}))

	if _, err := h.ctrl.Stop(context.Background()); !errors.Is(err, process.ErrUnknownState) {
		t.Fatalf("Stop() error = %v, want ErrUnknownState", err)
	}
	if h.world.Terminates() != 0 {
		t.Errorf("terminates = %d, want 0", h.world.Terminates())
	}
}

func TestStartLaunchFailure(t *testing.T) {
	world := processtest.Counts(0)
	world.LaunchErr = errors.New("file not found")
	h := newHarness(world)

	_, err := h.ctrl.Start(context.Background())
	if !errors.Is(err, process.ErrLaunch) {
		t.Fatalf("Start() error = %v, want ErrLaunch", err)
	}
	if got, _ := h.indicator.Last(); got {
		t.Error("indicator running after failed launch")
	}
}

func TestStopEscalation(t *testing.T) {
	tests := []struct {
		name           string
		counts         []int
		scripts        []string
		wantErr        error
		wantTerminates int
		wantKills      int
		wantScripts    int
	}{
		{"graceful succeeds", []int{1, 0}, nil, nil, 1, 0, 0},
		{"forced kill needed", []int{1, 1, 0}, nil, nil, 1, 1, 0},
		{"first script needed", []int{1, 1, 1, 0}, []string{"a.bat", "b.bat"}, nil, 1, 1, 1},
		{"second script needed", []int{1, 1, 1, 1, 0}, []string{"a.bat", "b.bat"}, nil, 1, 1, 2},
		{"unkillable without scripts", []int{1, 1, 1}, nil, process.ErrUnkillable, 1, 1, 0},
		{"unkillable after scripts", []int{1, 1, 1, 1}, []string{"a.bat"}, process.ErrUnkillable, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(processtest.Counts(tt.counts...), tt.scripts...)

			res, err := h.ctrl.Stop(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Stop() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && res != process.Stopped {
				t.Errorf("Stop() = %v, want Stopped", res)
			}
			if got := h.world.Terminates(); got != tt.wantTerminates {
				t.Errorf("terminates = %d, want %d", got, tt.wantTerminates)
			}
			if got := h.world.Kills(); got != tt.wantKills {
				t.Errorf("kills = %d, want %d", got, tt.wantKills)
			}
			if got := h.world.Scripts(); got != tt.wantScripts {
				t.Errorf("scripts = %d, want %d", got, tt.wantScripts)
			}

			wantStopped := 0
			if tt.wantErr == nil {
				wantStopped = 1
			}
			if h.stopped != wantStopped {
				t.Errorf("OnStopped calls = %d, want %d", h.stopped, wantStopped)
			}
			if got, _ := h.indicator.Last(); got != (tt.wantErr != nil) {
				t.Errorf("indicator = %v, want %v", got, tt.wantErr != nil)
			}
		})
	}
}

func TestStopAbandonedWhenConfirmationFails(t *testing.T) {
	h := newHarness(processtest.NewScripted(
		processtest.Step{Count: 1},
		processtest.Step{Err: errors.New("access denied")},
		processtest.Step{Count: 0},
	), "a.bat")

	_, err := h.ctrl.Stop(context.Background())
	if !errors.Is(err, process.ErrUnknownState) {
		t.Fatalf("Stop() error = %v, want ErrUnknownState", err)
	}
	if h.world.Terminates() != 1 {
		t.Errorf("terminates = %d, want 1", h.world.Terminates())
	}
	if h.world.Kills() != 0 || h.world.Scripts() != 0 {
		t.Errorf("kills = %d, scripts = %d, want no escalation past the failed observation",
			h.world.Kills(), h.world.Scripts())
	}
	if h.stopped != 0 {
		t.Errorf("OnStopped calls = %d, want 0", h.stopped)
	}
	snap := h.ctrl.State().Snapshot()
	if snap.Phase != process.Running || snap.LastError == "" {
		t.Errorf("state = %+v, want running with the observation error", snap)
	}
}

func TestStopTargetsCapturedIdentities(t *testing.T) {
	// Observation k reports PIDs starting at 1000*(k+1).
	h := newHarness(processtest.Counts(2, 1, 0))

	if _, err := h.ctrl.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := h.world.TerminateTargets(); !reflect.DeepEqual(got, [][]int32{{1000, 1001}}) {
		t.Errorf("terminate targets = %v, want the first observation's PIDs", got)
	}
	if got := h.world.KillTargets(); !reflect.DeepEqual(got, [][]int32{{2000}}) {
		t.Errorf("kill targets = %v, want the survivor from the second observation", got)
	}
}

func TestStartStopsDuplicatesFirst(t *testing.T) {
	h := newHarness(processtest.Counts(2, 0, 0, 1))

	res, err := h.ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res != process.Started {
		t.Errorf("Start() = %v, want Started", res)
	}
	if h.world.Terminates() != 1 || h.world.Launches() != 1 {
		t.Errorf("terminates = %d launches = %d, want 1 and 1", h.world.Terminates(), h.world.Launches())
	}
}

func TestStartAbortsWhenDuplicatesSurvive(t *testing.T) {
	h := newHarness(processtest.Counts(2, 2, 2))

	_, err := h.ctrl.Start(context.Background())
	if !errors.Is(err, process.ErrUnkillable) {
		t.Fatalf("Start() error = %v, want ErrUnkillable", err)
	}
	if h.world.Launches() != 0 {
		t.Errorf("launches = %d, want 0", h.world.Launches())
	}
}

func TestStartHonoursContextDuringSettle(t *testing.T) {
	world := processtest.Counts(0)
	h := newHarness(world)
	h.ctrl = process.NewController(process.Options{
		Observer:   world,
		Launcher:   world,
		Terminator: world,
		Timing:     process.Timing{StartSettle: time.Hour},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.ctrl.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Start() error = %v, want DeadlineExceeded", err)
	}
}

func TestOperationsAreMutuallyExclusive(t *testing.T) {
	world := processtest.NewWorld(0)
	world.Delay = 2 * time.Millisecond
	world.OnLaunch = func(int) int { return 1 }
	world.OnTerminate = func(int) int { return 0 }
	h := newHarness(world)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			if i%2 == 0 {
				h.ctrl.Start(ctx)
				return
			}
			h.ctrl.Stop(ctx)
		}(i)
	}
	wg.Wait()

	if got := h.world.MaxActive(); got != 1 {
		t.Errorf("max concurrent commands = %d, want 1", got)
	}
}

func TestExclusiveHoldsLock(t *testing.T) {
	world := processtest.NewWorld(0)
	world.OnLaunch = func(int) int { return 1 }
	h := newHarness(world)

	entered := make(chan struct{})
	release := make(chan struct{})
	go h.ctrl.Exclusive(func(tx *process.Tx) error {
		close(entered)
		<-release
		return nil
	})
	<-entered

	done := make(chan struct{})
	go func() {
		h.ctrl.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Start() ran while Exclusive held the lock")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start() did not run after Exclusive returned")
	}
}

func TestTxSettle(t *testing.T) {
	tests := []struct {
		count         int
		wantPhase     process.Phase
		wantIndicator []bool
	}{
		{0, process.Idle, []bool{false}},
		{1, process.Running, []bool{true}},
		{2, process.Idle, nil},
	}
	for _, tt := range tests {
		h := newHarness(processtest.Counts(tt.count))
		err := h.ctrl.Exclusive(func(tx *process.Tx) error {
			obs, err := tx.Observe(context.Background())
			if err != nil {
				return err
			}
			tx.Settle(obs)
			return nil
		})
		if err != nil {
			t.Fatalf("Exclusive() error = %v", err)
		}
		snap := h.ctrl.State().Snapshot()
		if snap.Phase != tt.wantPhase || snap.Count != tt.count {
			t.Errorf("count %d: snapshot = %+v, want phase %v", tt.count, snap, tt.wantPhase)
		}
		if got := h.indicator.Calls(); !reflect.DeepEqual(got, tt.wantIndicator) {
			t.Errorf("count %d: indicator calls = %v, want %v", tt.count, got, tt.wantIndicator)
		}
	}
}
