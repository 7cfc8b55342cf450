package process

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/motioninput/mimonitor/internal/models"
)

type staticEnumerator struct {
	records []Record
	err     error
}

func (e staticEnumerator) List(ctx context.Context) ([]Record, error) {
	return e.records, e.err
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		name  string
		app   models.AppConfig
		input string
		want  bool
	}{
		{"exact match", models.AppConfig{Executable: "MI_app.exe"}, "MI_app.exe", true},
		{"exact is case-insensitive", models.AppConfig{Executable: "MI_app.exe"}, "mi_APP.EXE", true},
		{"exact rejects prefix", models.AppConfig{Executable: "MI_app.exe", Match: models.MatchExact}, "MI_app_v2.exe", false},
		{"prefix match", models.AppConfig{Executable: "MI_app.exe", Match: models.MatchPrefix, Prefixes: []string{"MI_", "Motion"}}, "MotionInput3.exe", true},
		{"prefix miss", models.AppConfig{Executable: "MI_app.exe", Match: models.MatchPrefix, Prefixes: []string{"MI_"}}, "explorer.exe", false},
		{"blank prefixes ignored", models.AppConfig{Executable: "MI_app.exe", Match: models.MatchPrefix, Prefixes: []string{" "}}, "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewMatcher(tt.app).Match(tt.input); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTableObserveFilters(t *testing.T) {
	self := int32(os.Getpid())
	enum := staticEnumerator{records: []Record{
		{Name: "MI_app.exe", PID: 10, Status: "running"},
		{Name: "MI_app.exe", PID: 11, Status: "zombie"},
		{Name: "MI_app.exe", PID: self, Status: "running"},
		{Name: "explorer.exe", PID: 12, Status: "sleep"},
		{Name: "mi_app.exe", PID: 13},
	}}
	table := NewTable(enum, NewMatcher(models.AppConfig{Executable: "MI_app.exe"}))

	obs, err := table.Observe(context.Background())
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	pids := obs.PIDs()
	if len(pids) != 2 || pids[0] != 10 || pids[1] != 13 {
		t.Errorf("Observe() PIDs = %v, want [10 13]", pids)
	}
	if obs.Cardinality() != Many {
		t.Errorf("Cardinality() = %v, want many", obs.Cardinality())
	}
	if obs.TakenAt.IsZero() {
		t.Error("TakenAt not set")
	}
}

func TestTableObservePropagatesError(t *testing.T) {
	table := NewTable(staticEnumerator{err: errors.New("boom")}, NewMatcher(models.AppConfig{Executable: "x"}))
	if _, err := table.Observe(context.Background()); err == nil {
		t.Error("Observe() error = nil, want error")
	}
}

func TestCardinality(t *testing.T) {
	tests := []struct {
		n    int
		want Cardinality
	}{
		{0, None},
		{1, One},
		{2, Many},
		{5, Many},
	}
	for _, tt := range tests {
		obs := Observation{Records: make([]Record, tt.n)}
		if got := obs.Cardinality(); got != tt.want {
			t.Errorf("Cardinality() with %d records = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestStateNotifiesChanges(t *testing.T) {
	var seen []Snapshot
	s := NewState(func(sn Snapshot) { seen = append(seen, sn) })

	if got := s.Snapshot(); got.Phase != Idle || got.Count != -1 {
		t.Fatalf("initial snapshot = %+v, want idle with unknown count", got)
	}
	s.setPhase(Starting)
	s.observed(Observation{Records: make([]Record, 1)})
	s.finish(Running, nil)

	if len(seen) != 3 {
		t.Fatalf("onChange calls = %d, want 3", len(seen))
	}
	last := seen[2]
	if last.Phase != Running || last.Count != 1 || last.LastError != "" {
		t.Errorf("last snapshot = %+v, want running with one instance", last)
	}
	if Running.String() != "running" || Stopping.String() != "stopping" {
		t.Error("Phase.String() mismatch")
	}
}
