// Package tray implements the system tray indicator for the daemon.
package tray

// Icon is what one indicator instance shows.
type Icon struct {
	Running bool
	Image   []byte
	Tooltip string
}

// Backend renders indicator instances. Create shows an instance and blocks
// until Destroy is called or the user picks Quit, in which case it returns
// true. Destroy may arrive before Create has finished setting up and must
// still end that instance.
type Backend interface {
	Create(icon Icon) (quit bool)
	Destroy()
}
