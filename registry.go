package pnotify

import (
	"sync"
	"sync/atomic"
)

// registry is the process-wide, authoritative store of active watches. It
// delegates kernel-state installation and teardown to the active backend
// (and to the timer wheel for Timer watches), but the registry itself is
// the single source of truth for watch membership.
type registry struct {
	mu       sync.Mutex
	watches  map[Descriptor]*Watch
	children map[Descriptor][]Descriptor // parent -> direct children
	nextFd   atomic.Int64
}

// signalKeyspaceCeiling is set above the largest signal number any
// supported platform defines (Linux's real-time signals top out at 64),
// so monotonic descriptors handed out below never land on a value a
// Signal watch could also claim (Signal watches use the signal number
// itself as their descriptor).
const signalKeyspaceCeiling = 256

func newRegistry() *registry {
	r := &registry{
		watches:  make(map[Descriptor]*Watch),
		children: make(map[Descriptor][]Descriptor),
	}
	r.nextFd.Store(signalKeyspaceCeiling)
	return r
}

// nextDescriptor draws the next monotonic descriptor for non-Signal kinds.
// Signal watches never call this; they use their signal number directly,
// which is why the counter starts above signalKeyspaceCeiling instead of
// zero.
func (r *registry) nextDescriptor() Descriptor {
	return Descriptor(r.nextFd.Add(1))
}

// add installs w with the backend and, on success, links it into the
// registry. The registry lock is held only for the O(1) bookkeeping; the
// backend install call happens outside the lock since it may itself take
// other locks (it never blocks on a kernel syscall, but we still avoid
// nesting the registry lock across it).
func (r *registry) add(w *Watch, install func(*Watch) error) (Descriptor, error) {
	if err := install(w); err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.watches[w.descriptor] = w
	if w.hasParent {
		r.children[w.parent] = append(r.children[w.parent], w.descriptor)
	}
	r.mu.Unlock()
	return w.descriptor, nil
}

// lookup returns the live watch for d, or nil if it is not registered.
func (r *registry) lookup(d Descriptor) *Watch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watches[d]
}

// cancel removes d and every watch whose parent is d, delegating teardown
// to remove for each. Returns ErrUnknownWatch if d was never registered or
// was already cancelled.
func (r *registry) cancel(d Descriptor, remove func(*Watch) error) error {
	r.mu.Lock()
	w, ok := r.watches[d]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownWatch
	}
	kids := r.children[d]
	delete(r.children, d)
	delete(r.watches, d)
	if w.hasParent {
		r.removeChildLocked(w.parent, d)
	}
	r.mu.Unlock()

	var firstErr error
	if err := remove(w); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, kid := range kids {
		// Children never have their own registry-level parent entry beyond
		// this one, so no recursive child list to thread through.
		r.mu.Lock()
		kw, ok := r.watches[kid]
		delete(r.watches, kid)
		r.mu.Unlock()
		if ok {
			if err := remove(kw); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *registry) removeChildLocked(parent, child Descriptor) {
	kids := r.children[parent]
	for i, k := range kids {
		if k == child {
			r.children[parent] = append(kids[:i], kids[i+1:]...)
			break
		}
	}
}

// all returns a snapshot of every live watch, used by Shutdown.
func (r *registry) all() []*Watch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Watch, 0, len(r.watches))
	for _, w := range r.watches {
		out = append(out, w)
	}
	return out
}
