package pnotify

import (
	"context"
	"runtime"
	"sync"
)

// library holds the process-wide singleton state: one registry, one event
// queue, one timer wheel, one signal translator, and one active backend,
// guarded by a one-time init. One process has one kernel notification
// facility to multiplex; a second instance would only duplicate it.
type library struct {
	reg     *registry
	queue   *eventQueue
	timer   *timerWheel
	sig     *signalTranslator
	backend backend
}

var (
	libOnce sync.Once
	lib     *library
	libErr  error
)

// Init performs idempotent one-time initialisation: it installs the
// signal translator, creates the timer wheel (whose ticker starts only when
// the first Timer watch is armed), and opens the platform backend
// (epoll+inotify or kqueue). It must be called before any watch is
// registered.
func Init() error {
	libOnce.Do(func() {
		q := newEventQueue()
		l := &library{
			reg:   newRegistry(),
			queue: q,
			timer: newTimerWheel(q),
			sig:   newSignalTranslator(q),
		}

		b, err := newBackend(q)
		if err != nil {
			libErr = err
			return
		}
		l.backend = b
		// Oneshot auto-teardown drops the watch without invalidating the
		// Timeout event the tick has just queued for it.
		l.timer.cancel = func(d Descriptor) {
			_ = l.reg.cancel(d, func(w *Watch) error {
				l.timer.disarm(w.descriptor)
				return nil
			})
		}
		l.sig.start()
		lib = l
	})
	return libErr
}

func checkInit() (*library, error) {
	if lib == nil {
		return nil, ErrNotInitialized
	}
	return lib, nil
}

// AddWatch registers spec and returns its descriptor. Kernel registration
// failure is surfaced synchronously; no watch is created and no event is
// ever emitted for it.
func AddWatch(spec WatchSpec) (Descriptor, error) {
	l, err := checkInit()
	if err != nil {
		return 0, err
	}
	if spec.Mask == 0 && spec.Kind != Signal {
		return 0, ErrInvalidArgument
	}

	w := &Watch{
		kind:     spec.Kind,
		mask:     spec.Mask,
		fd:       spec.Fd,
		path:     spec.Path,
		interval: spec.Interval,
		signum:   spec.Signum,
		callback: spec.Callback,
		arg:      spec.Arg,
	}

	switch spec.Kind {
	case Fd, Vnode:
		w.descriptor = l.reg.nextDescriptor()
		return l.reg.add(w, l.backend.install)
	case Timer:
		if spec.Interval <= 0 {
			return 0, ErrInvalidArgument
		}
		w.descriptor = l.reg.nextDescriptor()
		return l.reg.add(w, func(w *Watch) error {
			l.timer.arm(w)
			return nil
		})
	case Signal:
		w.descriptor = Descriptor(spec.Signum)
		w.mask = SigMask
		return l.reg.add(w, l.sig.add)
	default:
		return 0, ErrInvalidArgument
	}
}

// WatchFd registers an Fd watch. mask should be some combination of Read
// and Write (Close and Error may also be observed but not requested).
func WatchFd(fd int, mask Mask, cb FdCallback, arg any) (Descriptor, error) {
	return AddWatch(WatchSpec{Kind: Fd, Fd: fd, Mask: mask, Callback: cb, Arg: arg})
}

// WatchVnode registers a Vnode watch on path.
func WatchVnode(path string, mask Mask, cb VnodeCallback, arg any) (Descriptor, error) {
	return AddWatch(WatchSpec{Kind: Vnode, Path: path, Mask: mask, Callback: cb, Arg: arg})
}

// WatchTimer registers a Timer watch firing every interval seconds
// (repeating), or once if mask includes Oneshot. The wheel ticks once a
// second, so a fractional interval fires after the next whole number of
// seconds (0.5 every second, 1.5 every two seconds).
func WatchTimer(intervalSeconds float64, mask Mask, cb TimerCallback, arg any) (Descriptor, error) {
	return AddWatch(WatchSpec{Kind: Timer, Interval: intervalSeconds, Mask: mask | Timeout, Callback: cb, Arg: arg})
}

// WatchSignal registers a Signal watch for signum. At most one watch may
// exist per signal number at a time.
func WatchSignal(signum int, cb SignalCallback, arg any) (Descriptor, error) {
	return AddWatch(WatchSpec{Kind: Signal, Signum: signum, Callback: cb, Arg: arg})
}

// Cancel unregisters d. On return the backend is guaranteed to no longer
// produce new events for the watch; events already queued may still be
// dispatched but are silently skipped, since their mask was zeroed.
// Cancelling an unknown or already-cancelled descriptor returns
// ErrUnknownWatch.
func Cancel(d Descriptor) error {
	l, err := checkInit()
	if err != nil {
		return err
	}
	return cancelLocked(l, d)
}

func cancelLocked(l *library, d Descriptor) error {
	return l.reg.cancel(d, func(w *Watch) error {
		var teardownErr error
		switch w.kind {
		case Fd, Vnode:
			teardownErr = l.backend.remove(w)
		case Timer:
			l.timer.disarm(w.descriptor)
		case Signal:
			l.sig.remove(w.signum)
		}
		l.queue.invalidate(w)
		return teardownErr
	})
}

// EventWait blocks until an event is available and returns it, or returns
// an error if ctx is done or the library has been shut down. There is no
// implicit timeout; bound the wait with ctx or a Timer watch.
func EventWait(ctx context.Context) (Event, error) {
	l, err := checkInit()
	if err != nil {
		return Event{}, err
	}
	return l.queue.pop(ctx)
}

// Dispatch runs the worker pool, sized to the detected CPU count, each
// invoking the matching watch's callback as events are dequeued. It
// blocks until ctx is done or the library is shut down.
func Dispatch(ctx context.Context) error {
	l, err := checkInit()
	if err != nil {
		return err
	}
	return dispatchWorkers(ctx, l.queue, runtime.NumCPU())
}

// Shutdown cancels every live watch, closes the event queue, and closes
// the backend (see backend.close). It does not stop the signal
// translator's goroutine, which keeps relaying signals. Callers embedding
// the library should call it once at process teardown; a second call
// panics, since the backend's close is not repeatable.
func Shutdown() error {
	l, err := checkInit()
	if err != nil {
		return err
	}
	for _, w := range l.reg.all() {
		_ = cancelLocked(l, w.descriptor)
	}
	l.queue.close()
	return l.backend.close()
}
