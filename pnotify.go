// Package pnotify provides a portable event-notification facility that
// unifies file-descriptor readiness, filesystem (vnode) changes, interval
// timers, and POSIX signals behind a single watch/event abstraction.
//
// On Linux the facility is backed by epoll plus inotify; on BSD-family
// kernels (darwin, freebsd, openbsd, netbsd, dragonfly) it is backed by
// kqueue. Callers register watches describing a resource and a mask of
// interesting conditions, then receive events either by blocking retrieval
// (EventWait) or by callback dispatch on a worker pool (Dispatch).
package pnotify

import (
	"errors"
	"fmt"
	"os"
)

// debug gates the internal backend pretty-printers (internal.Debug).
var debug = os.Getenv("PNOTIFY_DEBUG") != ""

// Kind identifies the resource a Watch describes.
type Kind int

const (
	// Fd watches a file descriptor for readiness.
	Fd Kind = iota
	// Vnode watches a filesystem path for changes.
	Vnode
	// Timer watches an interval, firing Timeout events.
	Timer
	// Signal watches a POSIX signal number.
	Signal
)

func (k Kind) String() string {
	switch k {
	case Fd:
		return "Fd"
	case Vnode:
		return "Vnode"
	case Timer:
		return "Timer"
	case Signal:
		return "Signal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Mask is a bitset over the conditions a Watch may be interested in, or an
// Event may report. Bit positions are part of the library's ABI and must
// not be renumbered.
type Mask uint32

const (
	Attrib  Mask = 1 << 0
	Create  Mask = 1 << 1
	Delete  Mask = 1 << 2
	Modify  Mask = 1 << 3
	Read    Mask = 1 << 4
	Write   Mask = 1 << 5
	Close   Mask = 1 << 6
	Timeout Mask = 1 << 7
	SigMask Mask = 1 << 8
	Oneshot Mask = 1 << 30
	Error   Mask = 1 << 31
)

// Has reports whether all bits of other are set in m.
func (m Mask) Has(other Mask) bool { return m&other == other }

// Any reports whether m has any of the bits of other set.
func (m Mask) Any(other Mask) bool { return m&other != 0 }

func (m Mask) String() string {
	names := []struct {
		m Mask
		n string
	}{
		{Attrib, "Attrib"}, {Create, "Create"}, {Delete, "Delete"},
		{Modify, "Modify"}, {Read, "Read"}, {Write, "Write"},
		{Close, "Close"}, {Timeout, "Timeout"}, {SigMask, "Signal"},
		{Oneshot, "Oneshot"}, {Error, "Error"},
	}
	s := ""
	for _, e := range names {
		if m.Has(e.m) {
			if s != "" {
				s += "|"
			}
			s += e.n
		}
	}
	if s == "" {
		return "0"
	}
	return s
}

// Descriptor is a stable integer handle identifying a watch, unique across
// the process lifetime. Descriptors are never reused. For Signal watches
// the descriptor equals the signal number.
type Descriptor int64

// FdCallback is invoked for events on an Fd watch.
type FdCallback func(fd int, mask Mask, arg any)

// VnodeCallback is invoked for events on a Vnode watch. The path argument
// receives the event's Name: the directory entry the event concerns, or ""
// for events on the watched path itself.
type VnodeCallback func(path string, mask Mask, arg any)

// TimerCallback is invoked when a Timer watch fires.
type TimerCallback func(mask Mask, arg any)

// SignalCallback is invoked when a Signal watch's signal is delivered.
type SignalCallback func(signum int, arg any)

// Watch is the central registered entity: a resource plus a mask of
// interesting conditions, optionally paired with a callback.
type Watch struct {
	descriptor Descriptor
	kind       Kind
	mask       Mask
	parent     Descriptor // 0 if no parent; see hasParent
	hasParent  bool

	// Resource, kind-tagged. Exactly one is meaningful for a given kind.
	fd       int
	path     string
	interval float64 // seconds
	signum   int

	// Opaque callback, kind-erased; invoked via the kind-specific
	// dispatch helpers in queue.go.
	callback any
	arg      any

	// backend is opaque state owned by the installing backend (e.g. the
	// open fd for a kqueue Vnode watch, or the inotify watch descriptor).
	backend any
}

// Descriptor returns the watch's stable handle.
func (w *Watch) Descriptor() Descriptor { return w.descriptor }

// Kind returns the watch's kind.
func (w *Watch) Kind() Kind { return w.kind }

// Mask returns the watch's interest mask.
func (w *Watch) Mask() Mask { return w.mask }

// Path returns the watched path for a Vnode watch, or "" otherwise.
func (w *Watch) Path() string { return w.path }

// Fd returns the watched descriptor for an Fd watch, or -1 otherwise.
func (w *Watch) Fd() int {
	if w.kind != Fd {
		return -1
	}
	return w.fd
}

// Event is a delivery record: a reference to the Watch that fired and the
// conditions observed. For Vnode events concerning a directory entry, Name
// holds the entry's filename.
type Event struct {
	Watch *Watch
	Mask  Mask
	Name  string
}

// WatchSpec describes a watch to be registered via AddWatch.
type WatchSpec struct {
	Kind     Kind
	Fd       int
	Path     string
	Interval float64 // seconds, Timer only
	Signum   int     // Timer unused; Signal only
	Mask     Mask
	Callback any
	Arg      any
}

var (
	// ErrNotInitialized is returned by any operation performed before Init.
	ErrNotInitialized = errors.New("pnotify: library not initialized")
	// ErrInvalidArgument covers an unknown Kind or an empty Mask.
	ErrInvalidArgument = errors.New("pnotify: invalid argument")
	// ErrUnknownWatch is returned by Cancel for a descriptor that is not
	// (or is no longer) live in the registry.
	ErrUnknownWatch = errors.New("pnotify: unknown or already-cancelled watch")
	// ErrSignalTaken is returned when a Signal watch is requested for a
	// signal number that already has a watch.
	ErrSignalTaken = errors.New("pnotify: signal already has a watch")
	// ErrEventOverflow names the kernel-side inotify queue overflow
	// (IN_Q_OVERFLOW). The library does not return it or attach it to
	// events: an overflow is reported as an Event with Mask Error on every
	// live Vnode watch, and those watches may have missed notifications.
	ErrEventOverflow = errors.New("pnotify: event queue overflow")
	// ErrClosed is returned by EventWait/Dispatch after Shutdown.
	ErrClosed = errors.New("pnotify: closed")
)

func wrapf(format string, args ...any) error { return fmt.Errorf(format, args...) }
