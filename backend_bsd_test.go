//go:build freebsd || openbsd || netbsd || dragonfly || darwin

package pnotify

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestVnodeFflagsMapping(t *testing.T) {
	f := vnodeFflags(Modify)
	want := uint32(unix.NOTE_WRITE | unix.NOTE_EXTEND | unix.NOTE_TRUNCATE)
	if f != want {
		t.Errorf("vnodeFflags(Modify) = %#x, want %#x", f, want)
	}

	if vnodeFflags(Attrib) != unix.NOTE_ATTRIB {
		t.Errorf("vnodeFflags(Attrib) = %#x, want NOTE_ATTRIB", vnodeFflags(Attrib))
	}
	if vnodeFflags(Delete) != unix.NOTE_DELETE {
		t.Errorf("vnodeFflags(Delete) = %#x, want NOTE_DELETE", vnodeFflags(Delete))
	}
	if vnodeFflags(0) != 0 {
		t.Errorf("vnodeFflags(0) = %#x, want 0", vnodeFflags(0))
	}
}
