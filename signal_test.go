package pnotify

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestSignalTranslatorAddRemove(t *testing.T) {
	st := newSignalTranslator(newEventQueue())
	w := &Watch{kind: Signal, signum: int(unix.SIGUSR1)}
	if err := st.add(w); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := st.add(&Watch{kind: Signal, signum: int(unix.SIGUSR1)}); err != ErrSignalTaken {
		t.Fatalf("add duplicate signum = %v, want ErrSignalTaken", err)
	}
	st.remove(int(unix.SIGUSR1))
	if err := st.add(&Watch{kind: Signal, signum: int(unix.SIGUSR1)}); err != nil {
		t.Fatalf("add after remove: %v", err)
	}
}

// TestSignalTranslatorRunDispatchesToWatch drives run() directly by
// feeding a synthetic signal into the translator's channel, bypassing
// os/signal.Notify (which would require process-wide signal delivery).
func TestSignalTranslatorRunDispatchesToWatch(t *testing.T) {
	q := newEventQueue()
	st := newSignalTranslator(q)
	w := &Watch{kind: Signal, signum: int(unix.SIGUSR1), descriptor: Descriptor(unix.SIGUSR1)}
	if err := st.add(w); err != nil {
		t.Fatalf("add: %v", err)
	}

	go st.run()
	st.ch <- unix.SIGUSR1

	e, err := q.pop(nil)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if e.Watch != w || e.Mask != SigMask {
		t.Fatalf("pop = %+v, want Watch=w Mask=SigMask", e)
	}
	close(st.ch)
}

// TestSignalTranslatorSkipsAlarm verifies SIGALRM never reaches a
// registered watch, since the timer wheel owns it conceptually.
func TestSignalTranslatorSkipsAlarm(t *testing.T) {
	q := newEventQueue()
	st := newSignalTranslator(q)
	w := &Watch{kind: Signal, signum: int(unix.SIGALRM)}
	if err := st.add(w); err != nil {
		t.Fatalf("add: %v", err)
	}

	go st.run()
	st.ch <- unix.SIGALRM
	// Also send SIGUSR2 so we have a definite signal to wait for; if
	// SIGALRM had wrongly been forwarded, it would have arrived first.
	w2 := &Watch{kind: Signal, signum: int(unix.SIGUSR2)}
	if err := st.add(w2); err != nil {
		t.Fatalf("add: %v", err)
	}
	st.ch <- unix.SIGUSR2

	e, err := q.pop(nil)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if e.Watch != w2 {
		t.Fatalf("pop = %+v, want the SIGUSR2 watch (SIGALRM must be skipped)", e)
	}
	close(st.ch)
}

func TestSignalTranslatorStartIsIdempotent(t *testing.T) {
	st := newSignalTranslator(newEventQueue())
	st.start()
	st.start() // must not register a second goroutine or panic
	time.Sleep(10 * time.Millisecond)
}
