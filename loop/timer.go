package loop

import (
	"container/heap"
	"time"
)

// Timer is a schedulable event with a repeat count and a next_timeout in
// monotonic microseconds (spec §3). It has two variants: Timeout (fixed
// period in ms) and Period (cron-style).
type Timer struct {
	event

	repeat      int64 // RepeatForever for infinite
	nextTimeout int64 // monotonic microseconds
	heapIndex   int

	periodMs int64 // Timeout variant: 0 for Period variant
	cronSpec *CronSpec // Period variant: nil for Timeout variant

	cb func(*Timer)
}

// AddTimeout schedules cb to run every periodMs milliseconds, repeat
// times (RepeatForever for indefinitely). Grounded on spec §3's Timeout
// variant: next_timeout += period_ms·1000 until it exceeds now, so a
// stalled loop catches up instead of firing a burst.
func (l *Loop) AddTimeout(periodMs int64, repeat int64, cb func(*Timer)) *Timer {
	t := &Timer{
		event:       newEvent(l, EventTypeTimeout, 0),
		repeat:      repeat,
		periodMs:    periodMs,
		nextTimeout: l.nowUS() + periodMs*1000,
		cb:          cb,
	}
	t.event.fire = func() { t.cb(t) }
	t.event.free = func() {}
	l.timerHeapPush(t)
	t.active = true
	l.activeCount.Add(1)
	return t
}

// AddPeriod schedules cb according to a cron-style (minute, hour, day,
// week, month) specification (spec §4.A).
func (l *Loop) AddPeriod(spec CronSpec, repeat int64, cb func(*Timer)) *Timer {
	wall := time.Now()
	next := spec.next(wall)
	t := &Timer{
		event:       newEvent(l, EventTypePeriod, 0),
		repeat:      repeat,
		cronSpec:    &spec,
		nextTimeout: l.nowUS() + next.Sub(wall).Microseconds(),
		cb:          cb,
	}
	t.event.fire = func() { t.cb(t) }
	t.event.free = func() {}
	l.timerHeapPush(t)
	t.active = true
	l.activeCount.Add(1)
	return t
}

// Cancel removes the timer from the loop. Per spec §5, an in-flight
// pending fire still completes; Cancel only prevents further firing
// and detaches it from the heap if still scheduled.
func (t *Timer) Cancel() {
	t.destroyRequested = true
	if t.active {
		t.active = false
		t.loop.activeCount.Add(-1)
	}
	t.loop.timerHeapRemove(t)
}

// advance recomputes nextTimeout for a fired, still-repeating timer.
func (t *Timer) advance(now int64) {
	if t.cronSpec != nil {
		wall := time.Now()
		t.nextTimeout = now + t.cronSpec.next(wall).Sub(wall).Microseconds()
		return
	}
	for t.nextTimeout <= now {
		t.nextTimeout += t.periodMs * 1000
	}
}

// timerHeap is a container/heap.Interface min-heap keyed by nextTimeout,
// grounded on the teacher's timerHeap in eventloop/loop.go.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].nextTimeout < h[j].nextTimeout }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.heapIndex = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*h = old[:n-1]
	return t
}

func (l *Loop) timerHeapPush(t *Timer) {
	heap.Push(&l.timers, t)
}

func (l *Loop) timerHeapRemove(t *Timer) {
	if t.heapIndex < 0 || t.heapIndex >= len(l.timers) {
		return
	}
	heap.Remove(&l.timers, t.heapIndex)
}

// walkTimers implements dispatch step 3: pop every timer whose
// nextTimeout has elapsed, decrement repeat, mark pending, and either
// re-heap (still repeating) or finalize destruction.
func (l *Loop) walkTimers() bool {
	any := false
	now := l.nowUS()
	for len(l.timers) > 0 && l.timers[0].nextTimeout <= now {
		t := heap.Pop(&l.timers).(*Timer)
		if t.repeat != RepeatForever {
			t.repeat--
		}
		if t.repeat == 0 {
			t.destroyRequested = true
			if t.active {
				t.active = false
				l.activeCount.Add(-1)
			}
		} else {
			t.advance(now)
			heap.Push(&l.timers, t)
		}
		l.markPending(&t.event)
		any = true
	}
	return any
}
