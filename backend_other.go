//go:build !linux && !freebsd && !openbsd && !netbsd && !dragonfly && !darwin

package pnotify

import (
	"fmt"
	"runtime"
)

// otherBackend reports unsupported instead of compiling in a silent
// no-op; the library covers Linux (epoll+inotify) and the BSD family
// (kqueue) only.
type otherBackend struct{}

func newBackend(q *eventQueue) (backend, error) {
	return nil, fmt.Errorf("pnotify: not supported on %s", runtime.GOOS)
}

func (otherBackend) install(w *Watch) error {
	return fmt.Errorf("pnotify: not supported on %s", runtime.GOOS)
}
func (otherBackend) remove(w *Watch) error { return nil }
func (otherBackend) close() error          { return nil }
