package loop

import (
	"golang.org/x/sys/unix"
)

// Write implements spec §4.E's thread-safe write path: attempt one
// non-blocking direct write when the queue is empty, otherwise enqueue
// the remainder and register write interest so the loop's writable-ready
// handler drains it. Safe to call from any goroutine (spec §5: writes
// are serialized by the handle's write mutex).
func (h *Handle) Write(buf []byte) (int, error) {
	if h.flags.closed {
		return 0, ErrClosed
	}

	h.writeMu.Lock()

	if len(h.writeQueue) == 0 {
		n, err := h.rawWrite(buf)
		if err == nil && n == len(buf) {
			h.writeMu.Unlock()
			return n, nil
		}
		if err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			h.writeMu.Unlock()
			h.loop.closeFromAnyThread(h, err)
			return -1, err
		}
		sent := n
		if err != nil {
			sent = 0
		}
		h.writeQueue = append(h.writeQueue, writeEntry{buf: cloneBuf(buf), offset: sent})
		h.writeMu.Unlock()
		h.loop.requestWriteInterest(h)
		return sent, nil
	}

	h.writeQueue = append(h.writeQueue, writeEntry{buf: cloneBuf(buf)})
	h.writeMu.Unlock()
	h.loop.requestWriteInterest(h)
	return 0, nil
}

func cloneBuf(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// rawWrite performs one non-blocking syscall-level write, branching on
// TLS/UDP/TCP exactly like the read path.
func (h *Handle) rawWrite(buf []byte) (int, error) {
	switch {
	case h.tls != nil:
		return h.tls.write(buf)
	case h.typ == IOTypeUDP || h.typ == IOTypeIP:
		if h.peerAddr == nil {
			return 0, ErrNoPeerAddr
		}
		if err := unix.Sendto(h.fd, buf, 0, h.peerAddr); err != nil {
			return 0, err
		}
		return len(buf), nil
	default:
		return unix.Write(h.fd, buf)
	}
}

// requestWriteInterest schedules the fd for write-readiness on the
// owning thread. Called from Write, which may run on any goroutine, so
// it posts through the loop's cross-thread event mechanism when the
// caller isn't the loop goroutine.
func (l *Loop) requestWriteInterest(h *Handle) {
	l.runOnLoopThread(func() {
		if h.flags.closed {
			return
		}
		_ = l.ioAdd(h, IOEventWrite)
	})
}

// handleWriteReady is the loop's writable-ready handler: pop the front
// of the queue and write; on full send pop the entry and loop until
// empty or another EAGAIN; once empty, deregister write interest and
// complete a pending close if one was requested (spec §4.E).
func (l *Loop) handleWriteReady(h *Handle) {
	for {
		h.writeMu.Lock()
		if len(h.writeQueue) == 0 {
			h.writeMu.Unlock()
			break
		}
		entry := &h.writeQueue[0]
		n, err := h.rawWrite(entry.buf[entry.offset:])
		if err != nil {
			h.writeMu.Unlock()
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			h.lastErr = err
			l.ioClose(h)
			return
		}
		entry.offset += n
		done := entry.offset >= len(entry.buf)
		var completed writeEntry
		if done {
			completed = h.writeQueue[0]
			h.writeQueue = h.writeQueue[1:]
		}
		empty := len(h.writeQueue) == 0
		h.writeMu.Unlock()

		if done && h.onWrite != nil {
			h.onWrite(h, len(completed.buf))
		}
		if !done {
			// Partial send: wait for the next writable event.
			return
		}
		if empty {
			break
		}
	}

	_ = l.ioDel(h, IOEventWrite)
	if h.flags.closePending {
		l.ioClose(h)
	}
}

// writeQueueLen reports the total unsent bytes, used by io_close to
// decide whether to defer via close-pending.
func (h *Handle) writeQueueLen() int {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	total := 0
	for _, e := range h.writeQueue {
		total += len(e.buf) - e.offset
	}
	return total
}
