package services

import (
	"errors"
	"sync"
)

var ErrNotRecording = errors.New("waypoint recording is not active")

// ClickHandler receives map clicks while waypoint recording is active.
type ClickHandler func(lat, lng float64)

// ClickDispatcher routes map clicks to at most one active handler.
type ClickDispatcher struct {
	mu      sync.Mutex
	handler ClickHandler
}

func NewClickDispatcher() *ClickDispatcher {
	return &ClickDispatcher{}
}

// Activate installs h, replacing any previously active handler.
func (d *ClickDispatcher) Activate(h ClickHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

func (d *ClickDispatcher) Deactivate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = nil
}

func (d *ClickDispatcher) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler != nil
}

// Dispatch forwards a click. It reports false when no handler is active.
func (d *ClickDispatcher) Dispatch(lat, lng float64) bool {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()

	if h == nil {
		return false
	}
	h(lat, lng)
	return true
}
