package phrase

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/motioninput/mimonitor/internal/models"
)

type countingResetter struct{ resets int }

func (r *countingResetter) Reset(ctx context.Context) error {
	r.resets++
	return nil
}

func motionSet(t *testing.T) *Set {
	t.Helper()
	set, err := NewSet(models.PhrasesConfig{Subjects: []string{"motion"}})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}
	return set
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSetExpandsSubjects(t *testing.T) {
	set, err := NewSet(models.PhrasesConfig{
		Subjects: []string{"Motion", "  mouse  "},
		Start:    []string{"Wake  Up"},
		Stop:     []string{"go to sleep"},
	})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	wantStart := []string{"start motion", "start mouse", "wake up"}
	wantStop := []string{"close motion", "close mouse", "go to sleep", "stop motion", "stop mouse"}
	if got := set.Start(); !reflect.DeepEqual(got, wantStart) {
		t.Errorf("Start() = %v, want %v", got, wantStart)
	}
	if got := set.Stop(); !reflect.DeepEqual(got, wantStop) {
		t.Errorf("Stop() = %v, want %v", got, wantStop)
	}
}

func TestNewSetRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.PhrasesConfig
	}{
		{"empty", models.PhrasesConfig{}},
		{"blank entries", models.PhrasesConfig{Subjects: []string{" "}, Start: []string{""}}},
		{"overlap", models.PhrasesConfig{Subjects: []string{"motion"}, Start: []string{"Stop Motion"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSet(tt.cfg); err == nil {
				t.Error("NewSet() error = nil, want error")
			}
		})
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       Kind
	}{
		{"empty", "", None},
		{"whitespace", "   ", None},
		{"unrelated", "what a lovely day", None},
		{"start", "start motion", StartRequested},
		{"start mixed case in sentence", "please START   Motion now", StartRequested},
		{"stop", "stop motion", StopRequested},
		{"close", "close motion", StopRequested},
		{"stop wins over start", "start motion stop motion", StopRequested},
		{"stop wins regardless of order", "close motion then start motion", StopRequested},
		{"partial word not enough", "start", None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset := &countingResetter{}
			d := NewDispatcher(motionSet(t), reset, quietLogger())

			got := d.Dispatch(context.Background(), tt.transcript)
			if got.Kind != tt.want {
				t.Errorf("Dispatch(%q) = %v, want %v", tt.transcript, got.Kind, tt.want)
			}

			wantResets := 0
			if tt.want != None {
				wantResets = 1
				if got.Source != SourceVoice {
					t.Errorf("Dispatch(%q).Source = %q, want voice", tt.transcript, got.Source)
				}
			}
			if reset.resets != wantResets {
				t.Errorf("resets = %d, want %d", reset.resets, wantResets)
			}
		})
	}
}

func TestDispatchStreamYieldsOneIntentPerUtterance(t *testing.T) {
	reset := &countingResetter{}
	d := NewDispatcher(motionSet(t), reset, quietLogger())

	var intents []Kind
	for _, tr := range []string{"", "start motion", ""} {
		if in := d.Dispatch(context.Background(), tr); in.Kind != None {
			intents = append(intents, in.Kind)
		}
	}

	if !reflect.DeepEqual(intents, []Kind{StartRequested}) {
		t.Errorf("intents = %v, want exactly one start", intents)
	}
	if reset.resets != 1 {
		t.Errorf("resets = %d, want 1", reset.resets)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Stop\tMOTION \n"); got != "stop motion" {
		t.Errorf("Normalize() = %q, want %q", got, "stop motion")
	}
}
