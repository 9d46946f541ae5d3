//go:build freebsd || openbsd || netbsd || dragonfly || darwin

package pnotify

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/watchkit/pnotify/internal"
)

// bsdBackend is the kqueue implementation of backend. A single dedicated
// goroutine blocks in kevent(); kqueue idents are themselves file
// descriptors, so one map serves both Fd and Vnode watches.
type bsdBackend struct {
	kq        int
	closepipe [2]int

	mu   sync.Mutex
	byFd map[int]*Watch // kqueue ident -> Watch
	dirs map[Descriptor]*dirState

	closed chan struct{}
}

func newBackend(q *eventQueue) (backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}

	var closepipe [2]int
	if err := unix.Pipe(closepipe[:]); err != nil {
		unix.Close(kq)
		return nil, os.NewSyscallError("pipe", err)
	}
	unix.CloseOnExec(closepipe[0])
	unix.CloseOnExec(closepipe[1])

	changes := make([]unix.Kevent_t, 1)
	unix.SetKevent(&changes[0], closepipe[0], unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE|unix.EV_ONESHOT)
	if _, err := unix.Kevent(kq, changes, nil, nil); err != nil {
		unix.Close(kq)
		unix.Close(closepipe[0])
		unix.Close(closepipe[1])
		return nil, os.NewSyscallError("kevent", err)
	}

	b := &bsdBackend{
		kq:        kq,
		closepipe: closepipe,
		byFd:      make(map[int]*Watch),
		dirs:      make(map[Descriptor]*dirState),
		closed:    make(chan struct{}),
	}
	go b.loop(q)
	return b, nil
}

func (b *bsdBackend) install(w *Watch) error {
	switch w.kind {
	case Fd:
		return b.installFd(w)
	case Vnode:
		return b.installVnode(w)
	default:
		return ErrInvalidArgument
	}
}

func (b *bsdBackend) remove(w *Watch) error {
	switch w.kind {
	case Fd:
		return b.removeFd(w)
	case Vnode:
		return b.removeVnode(w)
	default:
		return ErrInvalidArgument
	}
}

func (b *bsdBackend) close() error {
	close(b.closed)
	unix.Close(b.closepipe[1])
	return nil
}

// --- Fd watches ----------------------------------------------------------

func (b *bsdBackend) installFd(w *Watch) error {
	var changes []unix.Kevent_t
	flags := unix.EV_ADD | unix.EV_CLEAR | unix.EV_ENABLE
	if w.mask.Has(Oneshot) {
		flags |= unix.EV_ONESHOT
	}
	if w.mask.Has(Read) {
		ev := unix.Kevent_t{}
		unix.SetKevent(&ev, w.fd, unix.EVFILT_READ, flags)
		changes = append(changes, ev)
	}
	if w.mask.Has(Write) {
		ev := unix.Kevent_t{}
		unix.SetKevent(&ev, w.fd, unix.EVFILT_WRITE, flags)
		changes = append(changes, ev)
	}
	if len(changes) == 0 {
		return ErrInvalidArgument
	}
	if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil {
		return os.NewSyscallError("kevent", err)
	}
	b.mu.Lock()
	b.byFd[w.fd] = w
	b.mu.Unlock()
	return nil
}

func (b *bsdBackend) removeFd(w *Watch) error {
	b.mu.Lock()
	delete(b.byFd, w.fd)
	b.mu.Unlock()
	// The kernel drops the kevent and any pending notifications when the fd
	// is closed or explicitly deleted; we don't own the fd lifecycle for Fd
	// watches (the caller does), so issue an explicit EV_DELETE.
	var changes []unix.Kevent_t
	for _, filt := range []int16{unix.EVFILT_READ, unix.EVFILT_WRITE} {
		ev := unix.Kevent_t{}
		unix.SetKevent(&ev, w.fd, int(filt), unix.EV_DELETE)
		changes = append(changes, ev)
	}
	unix.Kevent(b.kq, changes, nil, nil) // best-effort; fd may already be gone
	return nil
}

// --- Vnode watches ---------------------------------------------------------

func vnodeFflags(mask Mask) uint32 {
	var f uint32
	if mask.Has(Modify) {
		f |= unix.NOTE_WRITE | unix.NOTE_EXTEND | unix.NOTE_TRUNCATE
	}
	if mask.Has(Attrib) {
		f |= unix.NOTE_ATTRIB
	}
	if mask.Has(Delete) {
		f |= unix.NOTE_DELETE
	}
	return f
}

// installVnode opens path to obtain a kqueue ident and registers
// EVFILT_VNODE. Used both for user-requested watches and for the
// directory diff engine's auto-created child watches; in the latter case
// w.parent is already linked by the caller.
func (b *bsdBackend) installVnode(w *Watch) error {
	fd, err := unix.Open(w.path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return os.NewSyscallError("open", err)
	}

	flags := unix.EV_ADD | unix.EV_CLEAR | unix.EV_ENABLE
	if w.mask.Has(Oneshot) {
		flags |= unix.EV_ONESHOT
	}
	ev := unix.Kevent_t{}
	unix.SetKevent(&ev, fd, unix.EVFILT_VNODE, flags)
	ev.Fflags = vnodeFflags(w.mask)

	if _, err := unix.Kevent(b.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		unix.Close(fd)
		return os.NewSyscallError("kevent", err)
	}

	w.backend = fd
	b.mu.Lock()
	b.byFd[fd] = w
	b.mu.Unlock()

	fi, statErr := os.Lstat(w.path)
	if statErr == nil && fi.IsDir() {
		ds := newDirState(w, b)
		b.mu.Lock()
		b.dirs[w.descriptor] = ds
		b.mu.Unlock()
		if err := ds.scan(nil); err != nil {
			return err
		}
	}
	return nil
}

func (b *bsdBackend) removeVnode(w *Watch) error {
	fd, ok := w.backend.(int)
	if !ok {
		return nil
	}
	b.mu.Lock()
	delete(b.byFd, fd)
	delete(b.dirs, w.descriptor)
	b.mu.Unlock()
	return unix.Close(fd) // kernel removes the kevent automatically on close
}

// --- ingestion loop --------------------------------------------------------

func (b *bsdBackend) loop(q *eventQueue) {
	events := make([]unix.Kevent_t, 10)
	for {
		n, err := internal.IgnoringEINTR(func() (int, error) {
			return unix.Kevent(b.kq, nil, events, nil)
		})
		if err != nil {
			panic("pnotify: kevent: " + err.Error())
		}

		for i := 0; i < n; i++ {
			ident := int(events[i].Ident)
			if ident == b.closepipe[0] {
				return
			}

			b.mu.Lock()
			w, ok := b.byFd[ident]
			b.mu.Unlock()
			if !ok {
				continue
			}

			switch w.kind {
			case Fd:
				b.translateFd(q, w, events[i])
			case Vnode:
				b.translateVnode(q, w, events[i])
			}
		}
	}
}

func (b *bsdBackend) translateFd(q *eventQueue, w *Watch, kevent unix.Kevent_t) {
	var m Mask
	switch kevent.Filter {
	case unix.EVFILT_READ:
		m |= Read
	case unix.EVFILT_WRITE:
		m |= Write
	}
	if kevent.Flags&unix.EV_EOF != 0 {
		m |= Close
	}
	if m != 0 {
		q.push(Event{Watch: w, Mask: m})
	}
}

func (b *bsdBackend) translateVnode(q *eventQueue, w *Watch, kevent unix.Kevent_t) {
	fflags := uint32(kevent.Fflags)
	if debug {
		internal.Debug(w.path, &kevent)
	}

	fi, statErr := os.Lstat(w.path)
	isDir := statErr == nil && fi.IsDir()

	if fflags&unix.NOTE_DELETE != 0 && isDir {
		// Self-deletion of a watched directory is fatal for this watch:
		// push an Error and tear it down.
		q.push(Event{Watch: w, Mask: Error})
		go func(d Descriptor) { _ = Cancel(d) }(w.descriptor)
		return
	}

	if isDir && fflags&unix.NOTE_WRITE != 0 {
		b.mu.Lock()
		ds := b.dirs[w.descriptor]
		b.mu.Unlock()
		if ds != nil {
			if err := ds.scan(q); err != nil {
				q.push(Event{Watch: w, Mask: Error})
			}
		}
		return
	}

	var m Mask
	if fflags&unix.NOTE_ATTRIB != 0 {
		m |= Attrib
	}
	if fflags&(unix.NOTE_WRITE|unix.NOTE_EXTEND|unix.NOTE_TRUNCATE) != 0 {
		m |= Modify
	}
	if fflags&unix.NOTE_DELETE != 0 {
		// A watch auto-created by the directory diff engine never forwards
		// its own Delete; the parent's next scan already emits the
		// correctly-named Delete event.
		if !w.hasParent {
			m |= Delete
		}
	}
	if m != 0 {
		q.push(Event{Watch: w, Mask: m})
	}
}
