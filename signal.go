package pnotify

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// signalTranslator is the Go-native stand-in for the C original's
// "mask every signal, dedicate a thread to sigwait" design: os/signal.Notify
// asks the Go runtime to route incoming signals to a channel instead of
// acting on its default disposition, and a single goroutine consumes that
// channel, exactly mirroring the one-thread-per-mechanism model of the
// other backends.
//
// Unlike the C original, the Go runtime itself raises signals no caller
// ever asked about (SIGURG drives async goroutine preemption since Go
// 1.14, and fires routinely under load or GC). A catch-all Notify would
// relay those too and run them into defaultHandler's exit-on-unrecognized
// path, so Notify is only ever asked for the fixed default-policy signals
// plus every signal number that has had a registered watch. remove does
// not narrow the relayed set again: a signal whose watch was removed is
// still relayed and goes to defaultHandler.
type signalTranslator struct {
	mu      sync.Mutex
	watches map[int]*Watch // signum -> Watch
	ch      chan os.Signal
	queue   *eventQueue
	started bool
}

// defaultPolicySignals always have a defined disposition (see
// defaultHandler) even without any registered watch, so they are always
// part of the relayed set.
var defaultPolicySignals = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGCHLD}

func newSignalTranslator(q *eventQueue) *signalTranslator {
	return &signalTranslator{
		watches: make(map[int]*Watch),
		ch:      make(chan os.Signal, 64),
		queue:   q,
	}
}

// start launches the dedicated signal-consuming goroutine. Idempotent.
func (st *signalTranslator) start() {
	st.mu.Lock()
	if st.started {
		st.mu.Unlock()
		return
	}
	st.started = true
	st.mu.Unlock()

	signal.Notify(st.ch, defaultPolicySignals...)
	go st.run()
}

func (st *signalTranslator) run() {
	for sig := range st.ch {
		signum := int(sig.(unix.Signal))
		if unix.Signal(signum) == unix.SIGALRM {
			// Deliberately excluded from translation, mirroring the C
			// original's exclusion of SIGALRM from its sigwait mask so the
			// timer wheel can own it; our timer wheel uses time.Ticker
			// instead, so this is a no-op rather than a real conflict.
			continue
		}
		st.mu.Lock()
		w, ok := st.watches[signum]
		st.mu.Unlock()
		if ok {
			st.queue.push(Event{Watch: w, Mask: SigMask})
			continue
		}
		defaultHandler(signum)
	}
}

// defaultHandler implements the default disposition for signals without a
// registered watch: terminate on SIGINT/SIGTERM, ignore SIGCHLD,
// terminate with a distinct exit code on anything else.
func defaultHandler(signum int) {
	switch unix.Signal(signum) {
	case unix.SIGINT, unix.SIGTERM:
		os.Exit(130)
	case unix.SIGCHLD:
		// ignored
	default:
		os.Exit(128 + signum)
	}
}

// add registers w (kind Signal) for its signal number. Returns
// ErrSignalTaken if a watch already exists for that signal. Notify is
// additive, so widening the relayed set here never disturbs the
// default-policy signals start already asked for.
func (st *signalTranslator) add(w *Watch) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.watches[w.signum]; ok {
		return ErrSignalTaken
	}
	st.watches[w.signum] = w
	signal.Notify(st.ch, unix.Signal(w.signum))
	return nil
}

// remove unregisters the watch for signum, if any.
func (st *signalTranslator) remove(signum int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.watches, signum)
}
