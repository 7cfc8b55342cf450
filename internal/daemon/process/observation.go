// Package process observes, launches, and terminates the managed application.
package process

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/motioninput/mimonitor/internal/models"
)

// Record is one OS process.
type Record struct {
	Name   string
	PID    int32
	Status string
}

// Cardinality buckets an instance count.
type Cardinality int

const (
	None Cardinality = iota
	One
	Many
)

func (c Cardinality) String() string {
	switch c {
	case None:
		return "none"
	case One:
		return "one"
	default:
		return "many"
	}
}

// Observation is a fresh snapshot of the processes matching the managed app.
type Observation struct {
	Records []Record
	TakenAt time.Time
}

// Count returns the number of matching processes.
func (o Observation) Count() int { return len(o.Records) }

// Cardinality classifies Count.
func (o Observation) Cardinality() Cardinality {
	switch n := o.Count(); {
	case n == 0:
		return None
	case n == 1:
		return One
	default:
		return Many
	}
}

// PIDs returns the process IDs in the observation.
func (o Observation) PIDs() []int32 {
	pids := make([]int32, len(o.Records))
	for i, r := range o.Records {
		pids[i] = r.PID
	}
	return pids
}

// Enumerator lists every OS process.
type Enumerator interface {
	List(ctx context.Context) ([]Record, error)
}

// Observer produces observations of the managed app.
type Observer interface {
	Observe(ctx context.Context) (Observation, error)
}

// Matcher decides whether a process name belongs to the managed app. Names
// are compared case-insensitively.
type Matcher struct {
	mode       string
	executable string
	prefixes   []string
}

// NewMatcher builds a matcher from the app configuration.
func NewMatcher(app models.AppConfig) Matcher {
	m := Matcher{mode: app.Match, executable: strings.ToLower(app.Executable)}
	if m.mode == "" {
		m.mode = models.MatchExact
	}
	for _, p := range app.Prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			m.prefixes = append(m.prefixes, p)
		}
	}
	return m
}

// Match reports whether name identifies the managed app.
func (m Matcher) Match(name string) bool {
	name = strings.ToLower(name)
	if m.mode != models.MatchPrefix {
		return name == m.executable
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Table observes the managed app through an Enumerator. Every call
// enumerates afresh.
type Table struct {
	enum  Enumerator
	match Matcher
	self  int32
	now   func() time.Time
}

// NewTable creates a Table. The calling process never counts as an instance.
func NewTable(enum Enumerator, match Matcher) *Table {
	return &Table{
		enum:  enum,
		match: match,
		self:  int32(os.Getpid()),
		now:   time.Now,
	}
}

// Observe implements Observer.
func (t *Table) Observe(ctx context.Context) (Observation, error) {
	all, err := t.enum.List(ctx)
	if err != nil {
		return Observation{}, err
	}

	obs := Observation{TakenAt: t.now()}
	for _, r := range all {
		if r.PID == t.self || isZombie(r.Status) || !t.match.Match(r.Name) {
			continue
		}
		obs.Records = append(obs.Records, r)
	}
	return obs, nil
}

func isZombie(status string) bool {
	s := strings.ToLower(status)
	return s == "zombie" || s == "z"
}
