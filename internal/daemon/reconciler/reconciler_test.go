package reconciler

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

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newController(world *processtest.World, ind *processtest.Indicator) *process.Controller {
	return process.NewController(process.Options{
		Observer:   world,
		Launcher:   world,
		Terminator: world,
		Indicator:  ind,
		Logger:     quietLogger(),
	})
}

func TestTickAlignsIndicator(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  bool
	}{
		{"no instance", 0, false},
		{"one instance", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			world := processtest.Counts(tt.count)
			ind := &processtest.Indicator{}
			r := New(newController(world, ind), time.Second, quietLogger())

			rep, err := r.Tick(context.Background())
			if err != nil {
				t.Fatalf("Tick() error = %v", err)
			}
			if rep.Action != Indicated || rep.Count != tt.count {
				t.Errorf("Tick() = %+v, want indicated with count %d", rep, tt.count)
			}
			if got := ind.Calls(); !reflect.DeepEqual(got, []bool{tt.want}) {
				t.Errorf("indicator calls = %v, want [%v]", got, tt.want)
			}
			if world.Launches()+world.Terminates() != 0 {
				t.Error("tick issued process commands")
			}
		})
	}
}

func TestTickUnknownStateTakesNoAction(t *testing.T) {
	world := processtest.NewScripted(processtest.Step{Err: errors.New("enumeration failed")})
	ind := &processtest.Indicator{}
	r := New(newController(world, ind), time.Second, quietLogger())

	rep, err := r.Tick(context.Background())
	if err == nil {
		t.Fatal("Tick() error = nil, want enumeration error")
	}
	if rep.Action != NoAction || rep.Count != -1 {
		t.Errorf("Tick() = %+v, want no action", rep)
	}
	if len(ind.Calls()) != 0 || world.Launches()+world.Terminates()+world.Kills() != 0 {
		t.Error("tick acted on unknown state")
	}
}

func TestTickCollapsesDuplicatesOnce(t *testing.T) {
	// Tick 1: observe 2, Stop observes 2 then terminates and sees 0, Start
	// observes 0, launches and confirms 1. Later ticks see 1.
	world := processtest.Counts(2, 2, 0, 0, 1)
	ind := &processtest.Indicator{}
	r := New(newController(world, ind), time.Second, quietLogger())

	var actions []Action
	for i := 0; i < 3; i++ {
		rep, err := r.Tick(context.Background())
		if err != nil {
			t.Fatalf("Tick() #%d error = %v", i+1, err)
		}
		actions = append(actions, rep.Action)
	}

	if want := []Action{Restarted, Indicated, Indicated}; !reflect.DeepEqual(actions, want) {
		t.Errorf("actions = %v, want %v", actions, want)
	}
	if world.Terminates() != 1 || world.Launches() != 1 {
		t.Errorf("terminates = %d launches = %d, want exactly one stop-then-start", world.Terminates(), world.Launches())
	}
	if world.Kills() != 0 {
		t.Errorf("kills = %d, want 0", world.Kills())
	}
	if last, _ := ind.Last(); !last {
		t.Error("indicator not running after duplicates collapsed")
	}
}

func TestTickDoesNotRaceVoiceStop(t *testing.T) {
	world := processtest.NewWorld(2)
	world.Delay = time.Millisecond
	world.OnLaunch = func(c int) int { return c + 1 }
	world.OnTerminate = func(int) int { return 0 }
	ind := &processtest.Indicator{}
	ctrl := newController(world, ind)
	r := New(ctrl, time.Second, quietLogger())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctrl.Stop(context.Background())
	}()
	go func() {
		defer wg.Done()
		r.Tick(context.Background())
	}()
	wg.Wait()

	if world.MaxActive() != 1 {
		t.Errorf("max concurrent commands = %d, want 1", world.MaxActive())
	}
	if world.Launches() > 1 {
		t.Errorf("launches = %d, want at most 1", world.Launches())
	}
}

func TestRunStopsWithContext(t *testing.T) {
	world := processtest.Counts(1)
	ind := &processtest.Indicator{}
	r := New(newController(world, ind), 5*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for world.Observes() < 3 {
		select {
		case <-deadline:
			t.Fatal("reconciler did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
