package loop

// Idle is an event that fires on any iteration where no I/O or timer
// event fired (spec §3). repeat == -1 means "retain forever", repeat == 0
// means "retain" is not special-cased here: Idle always decrements and
// self-destroys when repeat reaches zero, matching spec's "0 ⇒ retain,
// ∞ ⇒ retain forever" by having callers pass RepeatForever for the
// infinite case.
type Idle struct {
	event
	repeat int64 // RepeatForever for infinite
	cb     func(*Idle)

	prev, next *Idle // intrusive doubly-linked list node in loop.idles
}

// RepeatForever marks an Idle as never self-destroying.
const RepeatForever int64 = -1

// AddIdle registers cb to run every iteration where no I/O or timer
// fired. repeat bounds how many times it fires before self-destroying;
// pass RepeatForever to keep it alive indefinitely.
func (l *Loop) AddIdle(repeat int64, cb func(*Idle)) *Idle {
	idle := &Idle{
		event:  newEvent(l, EventTypeIdle, 0),
		repeat: repeat,
		cb:     cb,
	}
	idle.event.fire = func() { idle.cb(idle) }
	idle.event.free = func() { l.idleListRemove(idle) }
	l.idleListPush(idle)
	idle.active = true
	l.activeCount.Add(1)
	return idle
}

// Remove detaches the idle from the loop immediately.
func (i *Idle) Remove() {
	i.loop.idleListRemove(i)
	if i.active {
		i.active = false
		i.loop.activeCount.Add(-1)
	}
}

func (l *Loop) idleListPush(i *Idle) {
	i.next = l.idleHead
	i.prev = nil
	if l.idleHead != nil {
		l.idleHead.prev = i
	}
	l.idleHead = i
}

func (l *Loop) idleListRemove(i *Idle) {
	if i.prev != nil {
		i.prev.next = i.next
	} else if l.idleHead == i {
		l.idleHead = i.next
	}
	if i.next != nil {
		i.next.prev = i.prev
	}
	i.prev, i.next = nil, nil
}

// walkIdles implements dispatch step 4: decrement repeat, mark pending,
// self-destroy at zero. Returns true if any idle was marked pending.
func (l *Loop) walkIdles() bool {
	any := false
	for i := l.idleHead; i != nil; {
		next := i.next
		if i.repeat != RepeatForever {
			i.repeat--
			if i.repeat <= 0 {
				i.destroyRequested = true
				if i.active {
					i.active = false
					l.activeCount.Add(-1)
				}
			}
		}
		l.markPending(&i.event)
		any = true
		i = next
	}
	return any
}
