package pnotify

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/watchkit/pnotify/internal/ztest"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{Fd: "Fd", Vnode: "Vnode", Timer: "Timer", Signal: "Signal", Kind(99): "Kind(99)"}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

func TestMaskHasAndAny(t *testing.T) {
	m := Read | Write
	if !m.Has(Read) {
		t.Error("Has(Read) = false, want true")
	}
	if m.Has(Read | Attrib) {
		t.Error("Has(Read|Attrib) = true, want false (Attrib not set)")
	}
	if !m.Any(Attrib | Write) {
		t.Error("Any(Attrib|Write) = false, want true (Write is set)")
	}
	if Mask(0).Any(Read) {
		t.Error("zero mask Any(Read) = true, want false")
	}
}

func TestMaskString(t *testing.T) {
	if got := Mask(0).String(); got != "0" {
		t.Errorf("Mask(0).String() = %q, want %q", got, "0")
	}
	if got := (Create | Delete).String(); got != "Create|Delete" {
		t.Errorf("(Create|Delete).String() = %q, want %q", got, "Create|Delete")
	}
}

// TestLibraryLifecycle drives the public API end to end against a real
// pipe: registering an Fd watch, observing the Read event through
// EventWait, cancelling it, and confirming Shutdown tears everything down.
// Init is a process-wide singleton, so this is written as one test rather
// than split across independent ones.
func TestLibraryLifecycle(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = Shutdown() })

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	d, err := WatchFd(int(r.Fd()), Read, nil, nil)
	if err != nil {
		t.Fatalf("WatchFd: %v", err)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := EventWait(ctx)
	if err != nil {
		t.Fatalf("EventWait: %v", err)
	}
	have := fmt.Sprintf("descriptor=%d mask=%s", ev.Watch.Descriptor(), ev.Mask)
	want := fmt.Sprintf("descriptor=%d mask=%s", d, Read)
	if diff := ztest.Diff(have, want); diff != "" {
		t.Fatalf("event trace mismatch:\n%s", diff)
	}

	if err := Cancel(d); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := Cancel(d); err != ErrUnknownWatch {
		t.Fatalf("double Cancel = %v, want ErrUnknownWatch", err)
	}
}

func TestWatchTimerRequiresPositiveInterval(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// No Shutdown here: the singleton is shut down once, by
	// TestLibraryLifecycle's cleanup, and Shutdown is not repeatable.

	if _, err := WatchTimer(0, 0, nil, nil); err != ErrInvalidArgument {
		t.Fatalf("WatchTimer(0, ...) = %v, want ErrInvalidArgument", err)
	}
}
