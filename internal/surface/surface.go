// Package surface abstracts the browser window used for portal login. The
// login monitor only needs to poll a window's URL, read its cookies, and
// close it, so the interface stays that small; the rod implementation drives
// a real browser and tests substitute a fake.
package surface

// Surface is one open browser window.
type Surface interface {
	// URL returns the window's current navigation URL. Errors are transient
	// (the window may be mid-navigation); callers poll again.
	URL() (string, error)

	// Cookies returns the cookies visible to the given URL, unfiltered.
	Cookies(url string) (map[string]string, error)

	// Focus brings the window to the foreground.
	Focus() error

	// Alive reports whether the window still exists. A window the user closed
	// is gone for good.
	Alive() bool

	// Close destroys the window. Closing an already-closed window is a no-op
	// and never an error.
	Close() error
}

// Opener creates login surfaces.
type Opener interface {
	Open(url string) (Surface, error)
}
