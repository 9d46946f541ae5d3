//go:build linux

package pnotify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/watchkit/pnotify/internal"
)

// linuxBackend is the epoll+inotify implementation of backend. Two
// dedicated goroutines run for the lifetime of the process: one blocked in
// EpollWait for Fd watches, one reading the inotify fd for Vnode watches.
type linuxBackend struct {
	epfd  int
	inofd int
	inoFh *os.File

	mu     sync.Mutex
	byFd   map[int]*Watch    // fd -> Watch, Fd kind
	byWd   map[uint32]*Watch // inotify watch descriptor -> Watch, Vnode kind
	byPath map[string]uint32

	closed chan struct{}
	cap    *internal.Capabilities // nil if the capability probe failed; see installVnode
}

func newBackend(q *eventQueue) (backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	inofd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, os.NewSyscallError("inotify_init1", err)
	}

	cap, capErr := internal.CapInit()
	if capErr != nil {
		cap = nil
	}

	b := &linuxBackend{
		epfd:   epfd,
		inofd:  inofd,
		inoFh:  os.NewFile(uintptr(inofd), "pnotify-inotify"),
		byFd:   make(map[int]*Watch),
		byWd:   make(map[uint32]*Watch),
		byPath: make(map[string]uint32),
		closed: make(chan struct{}),
		cap:    cap,
	}
	go b.epollLoop(q)
	go b.inotifyLoop(q)
	return b, nil
}

func (b *linuxBackend) install(w *Watch) error {
	switch w.kind {
	case Fd:
		return b.installFd(w)
	case Vnode:
		return b.installVnode(w)
	default:
		return ErrInvalidArgument
	}
}

func (b *linuxBackend) remove(w *Watch) error {
	switch w.kind {
	case Fd:
		return b.removeFd(w)
	case Vnode:
		return b.removeVnode(w)
	default:
		return ErrInvalidArgument
	}
}

func (b *linuxBackend) close() error {
	close(b.closed)
	err1 := unix.Close(b.epfd)
	err2 := b.inoFh.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// --- Fd watches (epoll) -----------------------------------------------

func fdEvents(mask Mask) uint32 {
	var ev uint32
	if mask.Has(Read) {
		ev |= unix.EPOLLIN
	}
	if mask.Has(Write) {
		ev |= unix.EPOLLOUT
	}
	return ev | unix.EPOLLET // always edge-triggered
}

func (b *linuxBackend) installFd(w *Watch) error {
	ev := &unix.EpollEvent{Events: fdEvents(w.mask), Fd: int32(w.fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, w.fd, ev); err != nil {
		return os.NewSyscallError("epoll_ctl(ADD)", err)
	}
	b.mu.Lock()
	b.byFd[w.fd] = w
	b.mu.Unlock()
	return nil
}

func (b *linuxBackend) removeFd(w *Watch) error {
	b.mu.Lock()
	delete(b.byFd, w.fd)
	b.mu.Unlock()
	err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, w.fd, &unix.EpollEvent{})
	if err != nil && !errors.Is(err, unix.EBADF) {
		return os.NewSyscallError("epoll_ctl(DEL)", err)
	}
	return nil
}

func (b *linuxBackend) epollLoop(q *eventQueue) {
	const batch = 100
	events := make([]unix.EpollEvent, batch)
	for {
		select {
		case <-b.closed:
			return
		default:
		}

		n, err := internal.IgnoringEINTR(func() (int, error) {
			return unix.EpollWait(b.epfd, events, -1)
		})
		if err != nil {
			// epoll_wait only fails this way on a programming error
			// (bad fd, bad argument); there's no graceful recovery.
			panic("pnotify: epoll_wait: " + err.Error())
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			b.mu.Lock()
			w, ok := b.byFd[fd]
			b.mu.Unlock()
			if !ok {
				continue
			}

			var m Mask
			flags := events[i].Events
			if flags&unix.EPOLLIN != 0 {
				m |= Read
			}
			if flags&unix.EPOLLOUT != 0 {
				m |= Write
			}
			if flags&unix.EPOLLHUP != 0 {
				m |= Close
			}
			if flags&unix.EPOLLERR != 0 {
				m |= Error
			}
			if m != 0 {
				q.push(Event{Watch: w, Mask: m})
				if w.mask.Has(Oneshot) {
					go func(d Descriptor) { _ = Cancel(d) }(w.descriptor)
				}
			}
		}
	}
}

// --- Vnode watches (inotify) --------------------------------------------

func inotifyFlags(mask Mask) uint32 {
	var f uint32
	if mask.Has(Attrib) {
		f |= unix.IN_ATTRIB
	}
	if mask.Has(Create) {
		f |= unix.IN_CREATE | unix.IN_MOVED_TO
	}
	if mask.Has(Delete) {
		f |= unix.IN_DELETE | unix.IN_DELETE_SELF | unix.IN_MOVED_FROM | unix.IN_MOVE_SELF
	}
	if mask.Has(Modify) {
		f |= unix.IN_MODIFY
	}
	if mask.Has(Oneshot) {
		f |= unix.IN_ONESHOT
	}
	return f
}

func (b *linuxBackend) installVnode(w *Watch) error {
	path := filepath.Clean(w.path)
	flags := inotifyFlags(w.mask)

	wd, err := unix.InotifyAddWatch(b.inofd, path, flags)
	if err != nil {
		if errors.Is(err, internal.UnixEACCES) && !b.hasReadSearch() {
			return fmt.Errorf("%s: missing CAP_DAC_READ_SEARCH: %w", path, os.NewSyscallError("inotify_add_watch", err))
		}
		return os.NewSyscallError("inotify_add_watch", err)
	}

	b.mu.Lock()
	b.byWd[uint32(wd)] = w
	b.byPath[path] = uint32(wd)
	b.mu.Unlock()
	w.path = path
	w.backend = uint32(wd)
	return nil
}

func (b *linuxBackend) hasReadSearch() bool {
	if b.cap == nil {
		return false
	}
	ok, err := b.cap.IsSet(int(unix.CAP_DAC_READ_SEARCH), internal.CapEffective)
	return err == nil && ok
}

func (b *linuxBackend) removeVnode(w *Watch) error {
	wd, ok := w.backend.(uint32)
	if !ok {
		return nil
	}
	b.mu.Lock()
	delete(b.byWd, wd)
	delete(b.byPath, w.path)
	b.mu.Unlock()

	_, err := unix.InotifyRmWatch(b.inofd, wd)
	if err != nil && !errors.Is(err, unix.EINVAL) {
		return os.NewSyscallError("inotify_rm_watch", err)
	}
	return nil
}

func (b *linuxBackend) inotifyLoop(q *eventQueue) {
	var buf [unix.SizeofInotifyEvent * 4096]byte
	for {
		select {
		case <-b.closed:
			return
		default:
		}

		n, err := b.inoFh.Read(buf[:])
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				return
			}
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			panic("pnotify: inotify read: " + err.Error())
		}
		if n < unix.SizeofInotifyEvent {
			continue
		}

		var offset uint32
		for offset <= uint32(n)-unix.SizeofInotifyEvent {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			mask := uint32(raw.Mask)
			nameLen := uint32(raw.Len)
			next := func() { offset += unix.SizeofInotifyEvent + nameLen }

			if mask&unix.IN_Q_OVERFLOW != 0 {
				b.broadcastOverflow(q)
			}
			if mask&unix.IN_IGNORED != 0 {
				next()
				continue
			}

			b.mu.Lock()
			w, ok := b.byWd[uint32(raw.Wd)]
			b.mu.Unlock()
			if !ok {
				next()
				continue
			}

			var name string
			if nameLen > 0 {
				nameBytes := (*[unix.PathMax]byte)(unsafe.Pointer(&buf[offset+unix.SizeofInotifyEvent]))[:nameLen:nameLen]
				end := 0
				for end < len(nameBytes) && nameBytes[end] != 0 {
					end++
				}
				name = string(nameBytes[:end])
			}

			if debug {
				internal.Debug(w.path+"/"+name, mask)
			}

			m := translateInotifyMask(mask)
			if m != 0 {
				q.push(Event{Watch: w, Mask: m, Name: name})
			}

			if mask&unix.IN_DELETE_SELF != 0 || mask&unix.IN_IGNORED != 0 {
				b.mu.Lock()
				delete(b.byWd, uint32(raw.Wd))
				delete(b.byPath, w.path)
				b.mu.Unlock()
			}
			next()
		}
	}
}

func translateInotifyMask(mask uint32) Mask {
	var m Mask
	if mask&unix.IN_ATTRIB != 0 {
		m |= Attrib
	}
	if mask&unix.IN_MODIFY != 0 {
		m |= Modify
	}
	if mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0 {
		m |= Create
	}
	if mask&(unix.IN_DELETE|unix.IN_DELETE_SELF|unix.IN_MOVED_FROM|unix.IN_MOVE_SELF) != 0 {
		m |= Delete
	}
	return m
}

func (b *linuxBackend) broadcastOverflow(q *eventQueue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.byWd {
		q.push(Event{Watch: w, Mask: Error})
	}
}
