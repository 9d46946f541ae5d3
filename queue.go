package pnotify

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// eventQueue is the global FIFO of pending events. Producers (backend,
// timer, and signal goroutines) push at the tail and signal the condition
// variable; consumers are either a single blocking caller (EventWait) or a
// pool of dispatch workers (Dispatch).
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues e and wakes one waiting consumer.
func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.cond.Signal()
}

// invalidate zeroes the mask of every queued event referencing w, so
// consumers silently skip them instead of dispatching to a cancelled
// watch. Must be called with the watch already removed from the registry.
func (q *eventQueue) invalidate(w *Watch) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].Watch == w {
			q.items[i].Mask = 0
		}
	}
}

// pop blocks until an event is available, the queue is closed, or ctx is
// done. Spurious wake-ups re-loop; events with a zero mask (invalidated
// because their watch was cancelled) are silently dropped.
func (q *eventQueue) pop(ctx context.Context) (Event, error) {
	// Wake blocked pop calls when ctx is cancelled, since sync.Cond has no
	// native context support.
	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() { q.cond.Broadcast() })
		defer stop()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		for len(q.items) > 0 {
			e := q.items[0]
			q.items = q.items[1:]
			if e.Mask == 0 {
				continue
			}
			return e, nil
		}
		if q.closed {
			return Event{}, ErrClosed
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return Event{}, ctx.Err()
			default:
			}
		}
		q.cond.Wait()
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// invoke dispatches e to its watch's kind-specific callback. Called by a
// dispatch worker; never called for the blocking-retrieval path.
func invoke(e Event) {
	w := e.Watch
	if w == nil || w.callback == nil {
		return
	}
	switch w.kind {
	case Fd:
		if cb, ok := w.callback.(FdCallback); ok {
			cb(w.fd, e.Mask, w.arg)
		}
	case Vnode:
		if cb, ok := w.callback.(VnodeCallback); ok {
			cb(e.Name, e.Mask, w.arg)
		}
	case Timer:
		if cb, ok := w.callback.(TimerCallback); ok {
			cb(e.Mask, w.arg)
		}
	case Signal:
		if cb, ok := w.callback.(SignalCallback); ok {
			cb(w.signum, w.arg)
		}
	}
}

// dispatchWorkers runs n workers draining q until ctx is done or the queue
// is closed. Grounded on the errgroup "N workers, first error wins" shape
// used to coordinate reactor goroutines across the example corpus.
func dispatchWorkers(ctx context.Context, q *eventQueue, n int) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			for {
				e, err := q.pop(gctx)
				if err != nil {
					return err
				}
				invoke(e)
			}
		})
	}
	return g.Wait()
}
