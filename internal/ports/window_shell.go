package ports

// Boundary to the desktop window hosting the map view.
// All calls are fire-and-forget.
type WindowShell interface {
	Minimize()
	Maximize()
	OpenExternal(url string) error
}
