package supervisor

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/motioninput/mimonitor/internal/config"
	"github.com/motioninput/mimonitor/internal/daemon/audio"
	"github.com/motioninput/mimonitor/internal/daemon/phrase"
	"github.com/motioninput/mimonitor/internal/daemon/process"
	"github.com/motioninput/mimonitor/internal/daemon/process/processtest"
	"github.com/motioninput/mimonitor/internal/daemon/recognizer"
	"github.com/motioninput/mimonitor/internal/daemon/watcher"
	"github.com/motioninput/mimonitor/internal/models"
)

// textEngine treats each frame as the final transcript of an utterance.
type textEngine struct {
	mu     sync.Mutex
	resets int
}

func (e *textEngine) Feed(ctx context.Context, frame []byte) (recognizer.Transcript, error) {
	return recognizer.Transcript{Kind: recognizer.KindFinal, Text: string(frame)}, nil
}

func (e *textEngine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets++
	return nil
}

func (e *textEngine) Close() error { return nil }

func (e *textEngine) Resets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resets
}

type fakeMailbox struct{ ch chan watcher.Event }

func (m *fakeMailbox) Events() <-chan watcher.Event { return m.ch }

type fixture struct {
	sup       *Supervisor
	world     *processtest.World
	indicator *processtest.Indicator
	queue     *audio.Queue
	engine    *textEngine
	mailbox   *fakeMailbox
}

func newFixture(t *testing.T, world *processtest.World) *fixture {
	t.Helper()
	t.Setenv("MIMONITOR_HOME", t.TempDir())
	if err := config.EnsureGlobalDir(); err != nil {
		t.Fatal(err)
	}

	settings := models.NewSettings()
	settings.Timing = models.TimingConfig{PollInterval: time.Hour}

	f := &fixture{
		world:     world,
		indicator: &processtest.Indicator{},
		queue:     audio.NewQueue(16),
		engine:    &textEngine{},
		mailbox:   &fakeMailbox{ch: make(chan watcher.Event, 4)},
	}
	sup, err := New(Options{
		Settings:   settings,
		Frames:     f.queue,
		Engine:     f.engine,
		Observer:   world,
		Launcher:   world,
		Terminator: world,
		Scripts:    world,
		Indicator:  f.indicator,
		Mailbox:    f.mailbox,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.sup = sup
	return f
}

// run starts the supervisor and waits for the first reconcile tick so the
// indicator reflects the initial process table.
func (f *fixture) run(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		f.sup.Run(context.Background())
		close(done)
	}()
	t.Cleanup(func() {
		f.sup.Shutdown()
		<-done
	})
	eventually(t, func() bool { return len(f.indicator.Calls()) > 0 })
}

func (f *fixture) say(transcripts ...string) {
	for _, tr := range transcripts {
		f.queue.Push([]byte(tr))
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestStartPhraseLaunchesOnce(t *testing.T) {
	world := processtest.NewWorld(0)
	world.OnLaunch = func(int) int { return 1 }
	f := newFixture(t, world)
	f.run(t)

	f.say("", "start motion", "")
	eventually(t, func() bool {
		last, _ := f.indicator.Last()
		return last
	})
	// Let the trailing transcript drain.
	time.Sleep(20 * time.Millisecond)

	if world.Launches() != 1 {
		t.Errorf("launches = %d, want 1", world.Launches())
	}
	if got := f.indicator.Transitions(); !reflect.DeepEqual(got, []bool{false, true}) {
		t.Errorf("indicator transitions = %v, want OFF then ON", got)
	}

	eventually(t, func() bool {
		st, err := config.LoadStatus()
		return err == nil && st != nil && st.Phase == "running" && st.Instances == 1 && st.Indicator
	})
}

func TestStopPhraseGracefulTermination(t *testing.T) {
	world := processtest.NewWorld(1)
	world.OnTerminate = func(int) int { return 0 }
	f := newFixture(t, world)
	f.run(t)

	f.say("stop motion")
	eventually(t, func() bool {
		last, _ := f.indicator.Last()
		return !last
	})

	if got := f.indicator.Transitions(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Errorf("indicator transitions = %v, want ON then OFF", got)
	}
	if world.Terminates() != 1 || world.Kills() != 0 {
		t.Errorf("terminates = %d kills = %d, want 1 and 0", world.Terminates(), world.Kills())
	}
	// One reset from the dispatcher, one after the confirmed stop.
	eventually(t, func() bool { return f.engine.Resets() == 2 })
}

func TestStopPhraseForcedTermination(t *testing.T) {
	world := processtest.NewWorld(1)
	world.OnKill = func(int) int { return 0 }
	f := newFixture(t, world)
	f.run(t)

	f.say("stop motion")
	eventually(t, func() bool {
		last, _ := f.indicator.Last()
		return !last
	})

	if got := f.indicator.Transitions(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Errorf("indicator transitions = %v, want ON then OFF", got)
	}
	if world.Terminates() != 1 || world.Kills() != 1 {
		t.Errorf("terminates = %d kills = %d, want exactly one of each", world.Terminates(), world.Kills())
	}
}

func TestMailboxRequest(t *testing.T) {
	world := processtest.NewWorld(0)
	world.OnLaunch = func(int) int { return 1 }
	f := newFixture(t, world)
	f.run(t)

	path, err := config.SubmitRequest(models.NewControlRequest(models.ActionStart))
	if err != nil {
		t.Fatalf("SubmitRequest() error = %v", err)
	}
	f.mailbox.ch <- watcher.Event{Type: watcher.EventRequest, Path: path}

	eventually(t, func() bool { return world.Launches() == 1 })
	eventually(t, func() bool { return !config.FileExists(path) })

	// A duplicate event for a consumed request is ignored.
	f.mailbox.ch <- watcher.Event{Type: watcher.EventRequest, Path: path}
	time.Sleep(20 * time.Millisecond)
	if world.Launches() != 1 {
		t.Errorf("launches = %d, want 1", world.Launches())
	}
}

func TestMailboxRequestRecordsOutcome(t *testing.T) {
	world := processtest.NewWorld(0)
	world.OnLaunch = func(int) int { return 1 }
	f := newFixture(t, world)
	f.run(t)

	req := models.NewControlRequest(models.ActionStart)
	path, err := config.SubmitRequest(req)
	if err != nil {
		t.Fatalf("SubmitRequest() error = %v", err)
	}
	f.mailbox.ch <- watcher.Event{Type: watcher.EventRequest, Path: path}

	var st *models.StatusFile
	eventually(t, func() bool {
		st, _ = config.LoadStatus()
		return st != nil && st.LastRequest != nil && st.LastRequest.ID == req.ID
	})
	if st.LastRequest.Result != "started" || st.LastRequest.Error != "" {
		t.Errorf("LastRequest = %+v, want started without error", st.LastRequest)
	}
	if st.Phase != "running" {
		t.Errorf("Phase = %q, want running alongside the outcome", st.Phase)
	}
}

func TestMailboxDiscardsExpiredRequest(t *testing.T) {
	world := processtest.NewWorld(0)
	world.OnLaunch = func(int) int { return 1 }
	f := newFixture(t, world)
	f.run(t)

	req := models.NewControlRequest(models.ActionStart)
	req.RequestedAt = time.Now().Add(-2 * config.RequestTTL)
	path, err := config.SubmitRequest(req)
	if err != nil {
		t.Fatalf("SubmitRequest() error = %v", err)
	}
	f.mailbox.ch <- watcher.Event{Type: watcher.EventRequest, Path: path}

	var st *models.StatusFile
	eventually(t, func() bool {
		st, _ = config.LoadStatus()
		return st != nil && st.LastRequest != nil && st.LastRequest.ID == req.ID
	})
	if st.LastRequest.Error == "" {
		t.Errorf("LastRequest = %+v, want an expiry error", st.LastRequest)
	}
	if world.Launches() != 0 {
		t.Errorf("launches = %d, want 0 for an expired request", world.Launches())
	}
	if config.FileExists(path) {
		t.Error("expired request file was not removed")
	}
}

func TestStartAndStopReturnResults(t *testing.T) {
	world := processtest.NewWorld(1)
	world.OnTerminate = func(int) int { return 0 }
	f := newFixture(t, world)
	ctx := context.Background()

	if res, err := f.sup.Start(ctx, phrase.SourceCLI); err != nil || res != process.AlreadyRunning {
		t.Errorf("Start() = %v, %v; want already running", res, err)
	}
	if res, err := f.sup.Stop(ctx, phrase.SourceCLI); err != nil || res != process.Stopped {
		t.Errorf("Stop() = %v, %v; want stopped", res, err)
	}
	if res, err := f.sup.Stop(ctx, phrase.SourceCLI); err != nil || res != process.NotRunning {
		t.Errorf("second Stop() = %v, %v; want not running", res, err)
	}

	st := f.sup.Status()
	if st.Phase != "idle" || st.Instances != 0 || st.Indicator {
		t.Errorf("Status() = %+v, want idle with no instances", st)
	}
}

func TestHandleReportsFailures(t *testing.T) {
	world := processtest.NewWorld(0)
	f := newFixture(t, world)

	err := f.sup.Handle(context.Background(), phrase.Intent{Kind: phrase.StartRequested, Source: phrase.SourceCLI})
	if err == nil {
		t.Fatal("Handle() error = nil, want not confirmed")
	}
	if last, _ := f.indicator.Last(); last {
		t.Error("indicator ON after unconfirmed start")
	}
}

func TestNewRejectsIncompleteOptions(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() with no settings error = nil, want error")
	}
	settings := models.NewSettings()
	if _, err := New(Options{Settings: settings}); err == nil {
		t.Error("New() without boundaries error = nil, want error")
	}
}
