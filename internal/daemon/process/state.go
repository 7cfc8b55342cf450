package process

import (
	"sync"
	"time"
)

// Phase is the supervisor's view of the managed app.
type Phase int

const (
	Idle Phase = iota
	Starting
	Running
	Stopping
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Snapshot is a copy of State.
type Snapshot struct {
	Phase      Phase
	Count      int // -1 when the last observation failed
	ObservedAt time.Time
	LastError  string
}

// State is the shared supervisor state. It is mutated only by the Controller
// and its transactions, and read through Snapshot.
type State struct {
	mu       sync.RWMutex
	snap     Snapshot
	onChange func(Snapshot)
}

// NewState creates an idle state. onChange, if set, is called after every
// mutation with the new snapshot.
func NewState(onChange func(Snapshot)) *State {
	return &State{
		snap:     Snapshot{Phase: Idle, Count: -1},
		onChange: onChange,
	}
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *State) update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	snap := s.snap
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *State) setPhase(p Phase) {
	s.update(func(sn *Snapshot) { sn.Phase = p })
}

func (s *State) observed(obs Observation) {
	s.update(func(sn *Snapshot) {
		sn.Count = obs.Count()
		sn.ObservedAt = obs.TakenAt
	})
}

func (s *State) unknown(err error, at time.Time) {
	s.update(func(sn *Snapshot) {
		sn.Count = -1
		sn.ObservedAt = at
		sn.LastError = err.Error()
	})
}

// finish ends an operation in phase p, recording err (nil clears it).
func (s *State) finish(p Phase, err error) {
	s.update(func(sn *Snapshot) {
		sn.Phase = p
		sn.LastError = ""
		if err != nil {
			sn.LastError = err.Error()
		}
	})
}
