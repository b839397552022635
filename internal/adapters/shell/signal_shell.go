package shell

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
)

type SignalKind string

const (
	SignalMinimize     SignalKind = "minimize"
	SignalMaximize     SignalKind = "maximize"
	SignalOpenExternal SignalKind = "open_external"
)

// Signal is one request to the desktop host window.
type Signal struct {
	Kind SignalKind `json:"kind"`
	URL  string     `json:"url,omitempty"`
}

// SignalShell publishes window requests on a buffered channel drained by the
// embedding host. Sends never block; a full buffer drops the signal.
type SignalShell struct {
	ch chan Signal
}

func NewSignalShell(buffer int) *SignalShell {
	if buffer <= 0 {
		buffer = 16
	}
	return &SignalShell{ch: make(chan Signal, buffer)}
}

// Signals is the receive side for the host.
func (s *SignalShell) Signals() <-chan Signal { return s.ch }

func (s *SignalShell) Minimize() { s.publish(Signal{Kind: SignalMinimize}) }

func (s *SignalShell) Maximize() { s.publish(Signal{Kind: SignalMaximize}) }

// OpenExternal asks the host to open rawURL in the system browser.
// Only absolute http and https URLs are accepted.
func (s *SignalShell) OpenExternal(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("open external: parse %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("open external: scheme %q not allowed", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("open external: url has no host")
	}

	s.publish(Signal{Kind: SignalOpenExternal, URL: u.String()})
	return nil
}

func (s *SignalShell) publish(sig Signal) {
	select {
	case s.ch <- sig:
	default:
		log.Printf("op=shell_signal kind=%s dropped=true", sig.Kind)
	}
}
