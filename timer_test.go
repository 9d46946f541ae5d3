package pnotify

import "testing"

func TestTimerWheelArmDisarmLifecycle(t *testing.T) {
	q := newEventQueue()
	tw := newTimerWheel(q)

	w := &Watch{kind: Timer, interval: 5}
	w.descriptor = 1
	tw.arm(w)

	tw.mu.Lock()
	if tw.ticker == nil {
		tw.mu.Unlock()
		t.Fatal("arm did not start the ticker")
	}
	if _, ok := tw.entries[w.descriptor]; !ok {
		tw.mu.Unlock()
		t.Fatal("arm did not register the entry")
	}
	tw.mu.Unlock()

	tw.disarm(w.descriptor)

	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.ticker != nil {
		t.Fatal("disarm of the last entry did not stop the ticker")
	}
	if _, ok := tw.entries[w.descriptor]; ok {
		t.Fatal("disarm did not remove the entry")
	}
}

func TestTimerWheelDisarmUnknownIsSafe(t *testing.T) {
	tw := newTimerWheel(newEventQueue())
	tw.disarm(42) // must not panic
}

func TestTimerWheelTickEmitsTimeoutAndReloadsInterval(t *testing.T) {
	q := newEventQueue()
	tw := newTimerWheel(q)

	w := &Watch{kind: Timer, interval: 1}
	w.descriptor = 1
	tw.arm(w)

	tw.tick()

	e, err := q.pop(nil)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if e.Watch != w || e.Mask != Timeout {
		t.Fatalf("tick pushed %+v, want Timeout for w", e)
	}

	tw.mu.Lock()
	entry := tw.entries[w.descriptor]
	tw.mu.Unlock()
	if entry == nil {
		t.Fatal("repeating entry was removed after firing")
	}
	if entry.remaining != entry.interval {
		t.Fatalf("remaining = %v, want reset to interval %v", entry.remaining, entry.interval)
	}
}

func TestTimerWheelOneshotAutoCancels(t *testing.T) {
	q := newEventQueue()
	tw := newTimerWheel(q)

	w := &Watch{kind: Timer, interval: 1, mask: Oneshot}
	w.descriptor = 1
	tw.arm(w)

	var cancelled Descriptor
	done := make(chan struct{})
	tw.cancel = func(d Descriptor) { cancelled = d; close(done) }

	tw.tick()
	<-done

	if cancelled != w.descriptor {
		t.Fatalf("cancel called with %d, want %d", cancelled, w.descriptor)
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if _, ok := tw.entries[w.descriptor]; ok {
		t.Fatal("oneshot entry was not removed from the wheel after firing")
	}
}
