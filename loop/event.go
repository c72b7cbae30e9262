// Package loop implements the single-threaded reactor-style event loop:
// a minheap of timers, a linked list of idles, an fd-indexed handle
// table, and a priority-bucketed pending queue, all driven by an OS I/O
// watcher (epoll on Linux, kqueue on Darwin).
package loop

import "sync/atomic"

// EventType tags the concrete kind of an Event.
type EventType int

const (
	EventTypeIO EventType = iota
	EventTypeTimeout
	EventTypePeriod
	EventTypeIdle
	EventTypeCustom
)

func (t EventType) String() string {
	switch t {
	case EventTypeIO:
		return "io"
	case EventTypeTimeout:
		return "timeout"
	case EventTypePeriod:
		return "period"
	case EventTypeIdle:
		return "idle"
	case EventTypeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// MinPriority and MaxPriority bound the pending-bucket priority range
// (spec §3: -5..5, 11 buckets).
const (
	MinPriority = -5
	MaxPriority = 5
	numBuckets  = MaxPriority - MinPriority + 1
)

var globalEventID atomic.Uint64

func nextEventID() uint64 {
	return globalEventID.Add(1)
}

// event is the base embedded in every schedulable item (idle, timer,
// io handle, custom). It is never used standalone.
type event struct {
	loop     *Loop
	id       uint64
	kind     EventType
	priority int

	destroyRequested bool
	active           bool
	pending          bool

	// pendingNext links this event into its priority bucket's singly
	// linked list. Only valid while pending is true.
	pendingNext *event

	// fire is invoked by the loop's dispatch step. Each concrete wrapper
	// (Idle/Timer/Handle) installs a closure that captures itself, so the
	// callback recovers its own type without an interface allocation per
	// call.
	fire func()

	// free releases the concrete wrapper's own bookkeeping (e.g. unlink
	// from the idle list). Invoked once, after fire, only when
	// destroyRequested is still set and the event wasn't re-queued.
	free func()
}

func newEvent(l *Loop, kind EventType, priority int) event {
	if priority < MinPriority {
		priority = MinPriority
	}
	if priority > MaxPriority {
		priority = MaxPriority
	}
	return event{
		loop:     l,
		id:       nextEventID(),
		kind:     kind,
		priority: priority,
	}
}

// ID returns the event's stable, monotonically increasing identifier.
func (e *event) ID() uint64 { return e.id }

// bucketIndex maps the event's priority onto the loop's pending bucket array.
func (e *event) bucketIndex() int { return e.priority - MinPriority }

// markPending appends this event to the tail of its priority bucket.
// FIFO within a bucket: documented Open Question in SPEC_FULL.md.
func (l *Loop) markPending(e *event) {
	if e.pending {
		return
	}
	e.pending = true
	idx := e.bucketIndex()
	b := &l.pending[idx]
	e.pendingNext = nil
	if b.tail == nil {
		b.head = e
	} else {
		b.tail.pendingNext = e
	}
	b.tail = e
}

// pendingBucket is an intrusive FIFO singly-linked list of pending events
// at one priority level. Reset to empty in O(1) after each drain.
type pendingBucket struct {
	head *event
	tail *event
}

func (b *pendingBucket) reset() {
	b.head = nil
	b.tail = nil
}
