package pnotify

// backend is the capability trait implemented once for epoll+inotify
// (Linux) and once for kqueue (BSD). Translation from native notification
// to the uniform Event vocabulary is a flat switch inside each
// implementation rather than virtual dispatch per event, keeping the hot
// path allocation-free.
type backend interface {
	// install installs kernel-side state for w (kind Fd or Vnode) and
	// starts feeding translated events to q. Never blocks on a syscall
	// while any of the process-wide locks are held.
	install(w *Watch) error
	// remove tears down kernel-side state for w. Idempotent is not
	// required; callers only ever remove a watch once.
	remove(w *Watch) error
	// close releases the backend's kernel handle(s) and stops its
	// ingestion goroutine(s) where they can be woken: the kqueue loop and
	// the inotify loop return, while the Linux epoll loop stays blocked in
	// EpollWait. Called only at process-wide Shutdown.
	close() error
}
