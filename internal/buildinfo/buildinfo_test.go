package buildinfo

import (
	"strings"
	"testing"
)

func TestSummary(t *testing.T) {
	got := Summary("mimonitord")
	for _, want := range []string{"mimonitord", Version, CommitHash} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary() = %q, missing %q", got, want)
		}
	}
}
