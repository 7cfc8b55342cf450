package tray

import (
	"fmt"
	"log/slog"
	"sync"
)

// Indicator is a single-owner actor over a Backend. Run executes on the owner
// goroutine and builds one instance at a time from the desired state;
// SetRunning may be called from any goroutine and only requests a teardown.
// Requests that arrive while a teardown is outstanding coalesce into the next
// build.
type Indicator struct {
	backend Backend
	app     string
	images  Images
	logger  *slog.Logger

	mu          sync.Mutex
	desired     bool
	live        bool // an instance is being shown
	tearingDown bool // Destroy was requested for the live instance
	quit        bool
	builds      int

	done chan struct{}
}

// NewIndicator creates an indicator for app, initially OFF.
func NewIndicator(backend Backend, app string, images Images, logger *slog.Logger) *Indicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indicator{
		backend: backend,
		app:     app,
		images:  images,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Run builds indicator instances until Quit is picked or Shutdown is called.
// It must be called once, on the goroutine that owns the backend.
func (i *Indicator) Run() {
	defer close(i.done)

	for {
		i.mu.Lock()
		if i.quit {
			i.mu.Unlock()
			return
		}
		running := i.desired
		i.live = true
		i.tearingDown = false
		i.builds++
		i.mu.Unlock()

		quit := i.backend.Create(i.icon(running))

		i.mu.Lock()
		i.live = false
		if quit {
			i.quit = true
			i.logger.Info("quit selected from tray")
		}
		i.mu.Unlock()
	}
}

// SetRunning sets the desired state. Repeating the current desired state
// does nothing.
func (i *Indicator) SetRunning(running bool) {
	i.mu.Lock()
	if i.quit || running == i.desired {
		i.mu.Unlock()
		return
	}
	i.desired = running
	teardown := i.requestTeardownLocked()
	i.mu.Unlock()

	i.logger.Debug("indicator state requested", "running", running, "teardown", teardown)
	if teardown {
		i.backend.Destroy()
	}
}

// Shutdown tears down the live instance and ends Run.
func (i *Indicator) Shutdown() {
	i.mu.Lock()
	i.quit = true
	teardown := i.requestTeardownLocked()
	i.mu.Unlock()

	if teardown {
		i.backend.Destroy()
	}
}

// Done is closed when Run returns.
func (i *Indicator) Done() <-chan struct{} { return i.done }

// Running returns the desired state.
func (i *Indicator) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.desired
}

// Builds returns how many instances have been created.
func (i *Indicator) Builds() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.builds
}

func (i *Indicator) requestTeardownLocked() bool {
	if !i.live || i.tearingDown {
		return false
	}
	i.tearingDown = true
	return true
}

func (i *Indicator) icon(running bool) Icon {
	if running {
		return Icon{Running: true, Image: i.images.On, Tooltip: Tooltip(i.app, true)}
	}
	return Icon{Running: false, Image: i.images.Off, Tooltip: Tooltip(i.app, false)}
}

// Tooltip formats the indicator's hover text.
func Tooltip(app string, running bool) string {
	if running {
		return fmt.Sprintf("%s - ON", app)
	}
	return fmt.Sprintf("%s - OFF", app)
}
