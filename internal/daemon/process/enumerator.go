package process

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// SystemEnumerator lists processes through gopsutil.
type SystemEnumerator struct{}

// List implements Enumerator. Processes that exit while being listed are skipped.
func (SystemEnumerator) List(ctx context.Context) ([]Record, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	records := make([]Record, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		rec := Record{Name: name, PID: p.Pid}
		if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 {
			rec.Status = st[0]
		}
		records = append(records, rec)
	}
	return records, nil
}
