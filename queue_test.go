package pnotify

import (
	"context"
	"testing"
	"time"
)

func TestEventQueuePushPopOrder(t *testing.T) {
	q := newEventQueue()
	w1 := &Watch{descriptor: 1}
	w2 := &Watch{descriptor: 2}
	q.push(Event{Watch: w1, Mask: Read})
	q.push(Event{Watch: w2, Mask: Write})

	e1, err := q.pop(context.Background())
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if e1.Watch != w1 || e1.Mask != Read {
		t.Fatalf("pop 1 = %+v, want Watch=w1 Mask=Read", e1)
	}

	e2, err := q.pop(context.Background())
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if e2.Watch != w2 || e2.Mask != Write {
		t.Fatalf("pop 2 = %+v, want Watch=w2 Mask=Write", e2)
	}
}

func TestEventQueueInvalidateSkipsCancelledWatch(t *testing.T) {
	q := newEventQueue()
	w := &Watch{descriptor: 1}
	q.push(Event{Watch: w, Mask: Read})
	q.invalidate(w)

	done := make(chan struct{})
	go func() {
		q.push(Event{Watch: &Watch{descriptor: 2}, Mask: Write})
		close(done)
	}()
	<-done

	e, err := q.pop(context.Background())
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if e.Mask != Write {
		t.Fatalf("pop = %+v, want the second (non-invalidated) event", e)
	}
}

func TestEventQueuePopReturnsErrClosed(t *testing.T) {
	q := newEventQueue()
	q.close()
	if _, err := q.pop(context.Background()); err != ErrClosed {
		t.Fatalf("pop on closed queue = %v, want ErrClosed", err)
	}
}

func TestEventQueuePopRespectsContext(t *testing.T) {
	q := newEventQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.pop(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("pop on expired context = %v, want context.DeadlineExceeded", err)
	}
}

func TestInvokeDispatchesByKind(t *testing.T) {
	var gotFd int
	var gotMask Mask
	w := &Watch{kind: Fd, fd: 7, callback: FdCallback(func(fd int, mask Mask, arg any) {
		gotFd, gotMask = fd, mask
	})}
	invoke(Event{Watch: w, Mask: Read})
	if gotFd != 7 || gotMask != Read {
		t.Fatalf("invoke did not call the Fd callback correctly: fd=%d mask=%v", gotFd, gotMask)
	}
}

func TestInvokeSkipsNilWatchOrCallback(t *testing.T) {
	// Must not panic.
	invoke(Event{})
	invoke(Event{Watch: &Watch{kind: Fd}})
}

func TestDispatchWorkersStopsOnQueueClose(t *testing.T) {
	q := newEventQueue()
	errCh := make(chan error, 1)
	go func() { errCh <- dispatchWorkers(context.Background(), q, 2) }()

	q.close()
	select {
	case err := <-errCh:
		if err != ErrClosed {
			t.Fatalf("dispatchWorkers = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatchWorkers did not return after queue close")
	}
}
