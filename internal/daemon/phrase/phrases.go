// Package phrase turns transcripts into start/stop intents.
package phrase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/motioninput/mimonitor/internal/models"
)

// Set holds the start and stop trigger phrases. It is immutable after
// construction and the two sides never share a phrase.
type Set struct {
	start []string
	stop  []string
}

// Verbs combined with each configured subject.
var (
	startVerbs = []string{"start"}
	stopVerbs  = []string{"stop", "close"}
)

// NewSet builds a phrase set from explicit phrase lists plus, for every
// subject s, "start s" on the start side and "stop s", "close s" on the stop side.
func NewSet(cfg models.PhrasesConfig) (*Set, error) {
	start := map[string]struct{}{}
	stop := map[string]struct{}{}

	add := func(dst map[string]struct{}, p string) {
		if n := Normalize(p); n != "" {
			dst[n] = struct{}{}
		}
	}
	for _, s := range cfg.Subjects {
		subject := Normalize(s)
		if subject == "" {
			continue
		}
		for _, v := range startVerbs {
			add(start, v+" "+subject)
		}
		for _, v := range stopVerbs {
			add(stop, v+" "+subject)
		}
	}
	for _, p := range cfg.Start {
		add(start, p)
	}
	for _, p := range cfg.Stop {
		add(stop, p)
	}

	if len(start) == 0 && len(stop) == 0 {
		return nil, fmt.Errorf("no trigger phrases configured")
	}
	for p := range start {
		if _, ok := stop[p]; ok {
			return nil, fmt.Errorf("phrase %q is both a start and a stop phrase", p)
		}
	}

	return &Set{start: sortedKeys(start), stop: sortedKeys(stop)}, nil
}

// Start returns the start phrases, sorted.
func (s *Set) Start() []string { return append([]string(nil), s.start...) }

// Stop returns the stop phrases, sorted.
func (s *Set) Stop() []string { return append([]string(nil), s.stop...) }

// Normalize lowercases text and collapses runs of whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
