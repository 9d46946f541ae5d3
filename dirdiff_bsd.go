//go:build freebsd || openbsd || netbsd || dragonfly || darwin

package pnotify

import (
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// direntry is a cached directory member, keyed by inode number so a
// rename is recognized as "unchanged" rather than delete+create.
// Inode-number keying still misidentifies hardlinks as the same entry;
// no practical fix exists without OS support for content-addressed
// directory entries.
type direntry struct {
	ino   uint64
	name  string
	mask  Mask // provisional during a scan: Delete, 0 (unchanged), or Create
	child Descriptor
}

// dirState is the directory diff engine's per-watch bookkeeping: the
// directory watch (whose path is read as given) and the cached
// directory-entry set, diffed
// against a fresh readdir on every NOTE_WRITE using an inode-keyed,
// three-phase mark/scan/sweep diff.
type dirState struct {
	mu      sync.Mutex
	watch   *Watch
	backend *bsdBackend
	entries map[uint64]*direntry
}

func newDirState(w *Watch, b *bsdBackend) *dirState {
	return &dirState{watch: w, backend: b, entries: make(map[uint64]*direntry)}
}

// scan re-reads the directory and synthesises per-entry events. q is nil
// on the initial population (installVnode), in which case no events are
// emitted — only the baseline DirEntry set is recorded, mirroring
// watchDirectoryFiles's "mark seen, don't announce" behavior for files
// that already existed when the watch was added.
func (ds *dirState) scan(q *eventQueue) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if q != nil {
		for _, e := range ds.entries {
			e.mask = Delete
		}
	}

	ents, err := os.ReadDir(ds.watch.path)
	if os.IsNotExist(err) {
		return nil // directory gone; the forthcoming NOTE_DELETE will clean up
	}
	if err != nil {
		return err
	}

	for _, de := range ents {
		name := de.Name()
		if name == "." {
			continue
		}
		if len(filepath.Join(ds.watch.path, name)) > unix.PathMax {
			if q != nil {
				q.push(Event{Watch: ds.watch, Mask: Error, Name: name})
			}
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue // vanished between readdir and stat; next scan will reconcile
		}
		st, ok := info.Sys().(*unix.Stat_t)
		if !ok {
			continue
		}
		ino := uint64(st.Ino)

		if existing, found := ds.entries[ino]; found {
			existing.mask = 0
			existing.name = name
			continue
		}

		entry := &direntry{ino: ino, name: name, mask: Create}
		ds.entries[ino] = entry

		if q != nil && !info.IsDir() && info.Mode().IsRegular() &&
			ds.watch.mask.Any(Modify|Attrib) {
			child, err := ds.addChildWatch(name)
			if err == nil {
				entry.child = child.descriptor
			}
		}
	}

	if q == nil {
		return nil
	}

	for ino, e := range ds.entries {
		switch e.mask {
		case Delete:
			q.push(Event{Watch: ds.watch, Mask: Delete, Name: e.name})
			if e.child != 0 {
				go func(d Descriptor) { _ = Cancel(d) }(e.child)
			}
			delete(ds.entries, ino)
		case Create:
			q.push(Event{Watch: ds.watch, Mask: Create, Name: e.name})
		}
	}
	return nil
}

// addChildWatch auto-creates a Vnode watch on a regular-file directory
// entry, linked to the directory watch as parent.
func (ds *dirState) addChildWatch(name string) (*Watch, error) {
	l, err := checkInit()
	if err != nil {
		return nil, err
	}

	child := &Watch{
		kind:      Vnode,
		mask:      ds.watch.mask &^ (Create | Delete),
		path:      filepath.Join(ds.watch.path, name),
		parent:    ds.watch.descriptor,
		hasParent: true,
	}
	child.descriptor = l.reg.nextDescriptor()

	_, err = l.reg.add(child, func(w *Watch) error {
		return ds.backend.installVnode(w)
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}
