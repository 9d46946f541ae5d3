//go:build linux

package pnotify

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestFdEventsAlwaysEdgeTriggered(t *testing.T) {
	if fdEvents(Read)&unix.EPOLLET == 0 {
		t.Fatal("fdEvents must always set EPOLLET (edge-triggered)")
	}
}

func TestFdEventsMapsReadWrite(t *testing.T) {
	ev := fdEvents(Read | Write)
	if ev&unix.EPOLLIN == 0 {
		t.Error("Read did not set EPOLLIN")
	}
	if ev&unix.EPOLLOUT == 0 {
		t.Error("Write did not set EPOLLOUT")
	}
}

func TestInotifyFlagsMapping(t *testing.T) {
	f := inotifyFlags(Delete)
	want := uint32(unix.IN_DELETE | unix.IN_DELETE_SELF | unix.IN_MOVED_FROM | unix.IN_MOVE_SELF)
	if f != want {
		t.Errorf("inotifyFlags(Delete) = %#x, want %#x", f, want)
	}
}

func TestTranslateInotifyMask(t *testing.T) {
	cases := []struct {
		in   uint32
		want Mask
	}{
		{unix.IN_ATTRIB, Attrib},
		{unix.IN_MODIFY, Modify},
		{unix.IN_CREATE, Create},
		{unix.IN_MOVED_TO, Create},
		{unix.IN_DELETE, Delete},
		{unix.IN_DELETE_SELF, Delete},
		{0, 0},
	}
	for _, c := range cases {
		if got := translateInotifyMask(c.in); got != c.want {
			t.Errorf("translateInotifyMask(%#x) = %v, want %v", c.in, got, c.want)
		}
	}
}
