// Package servertest provides an in-memory supervisor for exercising the
// control service.
package servertest

import (
	"context"
	"sync"
	"time"

	"github.com/motioninput/mimonitor/internal/daemon/phrase"
	"github.com/motioninput/mimonitor/internal/daemon/process"
	"github.com/motioninput/mimonitor/internal/models"
)

// Supervisor simulates one managed app that is either running or idle.
type Supervisor struct {
	// StopErr fails every Stop and leaves the app running.
	StopErr error
	// Release, when set, holds Stop until it is closed.
	Release chan struct{}

	mu      sync.Mutex
	running bool
	stopCtx context.Context
	sources []phrase.Source
}

// New returns a supervisor whose app is running or idle.
func New(running bool) *Supervisor {
	return &Supervisor{running: running}
}

// Start implements server.Supervisor.
func (s *Supervisor) Start(ctx context.Context, src phrase.Source) (process.StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, src)
	if s.running {
		return process.AlreadyRunning, nil
	}
	s.running = true
	return process.Started, nil
}

// Stop implements server.Supervisor.
func (s *Supervisor) Stop(ctx context.Context, src phrase.Source) (process.StopResult, error) {
	s.mu.Lock()
	s.stopCtx = ctx
	s.sources = append(s.sources, src)
	release := s.Release
	s.mu.Unlock()

	if release != nil {
		<-release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StopErr != nil {
		return 0, s.StopErr
	}
	if !s.running {
		return process.NotRunning, nil
	}
	s.running = false
	return process.Stopped, nil
}

// Status implements server.Supervisor.
func (s *Supervisor) Status() *models.StatusFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &models.StatusFile{Version: 1, App: "UCL MotionInput", Phase: "idle", UpdatedAt: time.Now().UTC()}
	if s.running {
		st.Phase, st.Instances, st.Indicator = "running", 1, true
	}
	if s.StopErr != nil {
		st.LastError = s.StopErr.Error()
	}
	return st
}

// StopContext returns the context the last Stop ran with, or nil.
func (s *Supervisor) StopContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCtx
}

// Sources returns the source of every call so far.
func (s *Supervisor) Sources() []phrase.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]phrase.Source(nil), s.sources...)
}
