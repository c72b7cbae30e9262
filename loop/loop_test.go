package loop

import (
	"testing"
	"time"
)

func TestRunOnceReturnsAfterSingleIteration(t *testing.T) {
	l, err := New(WithRunOnce(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.free()

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnce did not return")
	}
	if l.Status() != StatusStopped {
		t.Fatalf("status = %v, want StatusStopped", l.Status())
	}
}

func TestQuitWhenNoActiveEventsStopsOnceTimerFires(t *testing.T) {
	l, err := New(WithQuitWhenNoActiveEvents(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.free()

	var fired bool
	l.AddTimeout(10, 1, func(*Timer) { fired = true })

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not quit once the only active timer fired")
	}
	if !fired {
		t.Fatal("timer callback never ran")
	}
}

func TestStopFromAnotherGoroutine(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.free()

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	// give Run a moment to reach the poll.
	time.Sleep(20 * time.Millisecond)
	l.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop from another goroutine did not terminate Run")
	}
}

func TestAddTimeoutFiresInDeadlineOrder(t *testing.T) {
	l, err := New(WithQuitWhenNoActiveEvents(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.free()

	var order []int
	l.AddTimeout(30, 1, func(*Timer) { order = append(order, 3) })
	l.AddTimeout(10, 1, func(*Timer) { order = append(order, 1) })
	l.AddTimeout(20, 1, func(*Timer) { order = append(order, 2) })

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never quit")
	}

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("fire order = %v, want [1 2 3]", order)
	}
}

func TestIdleRepeatExhaustionDecrementsActiveCount(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.free()

	before := l.ActiveEventCount()
	idle := l.AddIdle(1, func(*Idle) {})
	_ = idle
	if l.ActiveEventCount() != before+1 {
		t.Fatalf("active count after AddIdle = %d, want %d", l.ActiveEventCount(), before+1)
	}

	// one RunOnce iteration walks idles (no I/O or timers fired) and
	// exhausts the idle's single repeat.
	l2, err := New(WithRunOnce(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l2.free()
	l2.AddIdle(1, func(*Idle) {})
	if err := l2.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if l2.ActiveEventCount() != 0 {
		t.Fatalf("active count after repeat exhaustion = %d, want 0", l2.ActiveEventCount())
	}
}

func TestHandleIDsAreUniqueAcrossFDReuse(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.free()

	done := make(chan error, 1)
	go func() { done <- l.Run() }()
	defer func() {
		l.Stop()
		<-done
	}()

	h, err := l.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	id1 := h.ID()

	closed := make(chan struct{})
	h.SetCloseCallback(func(*Handle, error) { close(closed) })
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close callback never fired")
	}

	h2, err := l.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen (2nd): %v", err)
	}
	if h2.ID() == id1 {
		t.Fatal("reused fd produced the same handle ID as the closed handle")
	}
}
