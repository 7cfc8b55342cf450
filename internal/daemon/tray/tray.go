package tray

import (
	"github.com/getlantern/systray"
)

// Run starts the system tray event loop. This blocks the calling goroutine
// (must be main). onReady is called once the tray can be used; onExit after
// Quit.
func Run(onReady, onExit func()) {
	systray.Run(onReady, onExit)
}

// Quit ends the tray event loop.
func Quit() {
	systray.Quit()
}

// SystrayBackend shows indicator instances on the system tray. The tray
// itself lives for the whole process; each instance replaces the icon and
// tooltip and lasts until destroyed.
type SystrayBackend struct {
	quitItem *systray.MenuItem
	destroy  chan struct{}
}

// NewSystrayBackend adds the Quit menu item. Call it from the onReady
// callback passed to Run.
func NewSystrayBackend(app string) *SystrayBackend {
	quit := systray.AddMenuItem("Quit", "Stop listening and exit "+app)
	return &SystrayBackend{
		quitItem: quit,
		destroy:  make(chan struct{}, 1),
	}
}

// Create implements Backend.
func (b *SystrayBackend) Create(icon Icon) bool {
	systray.SetIcon(icon.Image)
	systray.SetTooltip(icon.Tooltip)

	select {
	case <-b.destroy:
		return false
	case <-b.quitItem.ClickedCh:
		return true
	}
}

// Destroy implements Backend.
func (b *SystrayBackend) Destroy() {
	select {
	case b.destroy <- struct{}{}:
	default:
	}
}
