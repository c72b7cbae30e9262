package loop

import "golang.org/x/sys/unix"

// postEvent implements spec §4.D's cross-thread injection: append fn to
// a mutex-protected FIFO, then write one byte to the wake socketpair so
// a blocked poll returns immediately. The callback itself still only
// ever runs on the loop goroutine, via drainCustomQueue reacting to the
// wake handle's read-ready event.
func (l *Loop) postEvent(priority int, fn func()) {
	l.customMu.Lock()
	l.customQueue = append(l.customQueue, fn)
	l.customMu.Unlock()

	for {
		_, err := unix.Write(l.wakeWriteFD, []byte{0})
		if err == nil || err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if err == unix.EINTR {
			continue
		}
		return
	}
}

// drainCustomQueue first drains the wake socket's byte backlog so it
// doesn't accumulate, then runs every queued custom callback in
// submission order. Always called from the loop goroutine (it's the wake
// handle's read callback, dispatched from the normal drainPending path),
// so no additional synchronization is needed around invoking fn.
func (l *Loop) drainCustomQueue() {
	var buf [256]byte
	for {
		n, err := unix.Read(l.wakeReadFD, buf[:])
		if n <= 0 || err != nil {
			break
		}
		if n < len(buf) {
			break
		}
	}

	l.customMu.Lock()
	queue := l.customQueue
	l.customQueue = nil
	l.customMu.Unlock()

	for _, fn := range queue {
		fn()
	}
}
