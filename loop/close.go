package loop

import (
	"time"

	"golang.org/x/sys/unix"
)

// Close implements spec §4.E's io_close: off-thread calls are posted as
// a custom event carrying the handle's current id so a stale close (fd
// reused in the meantime) is silently dropped; on-thread with a
// non-empty write queue and no error defers via close-pending and a
// close-timeout timer; otherwise it tears the handle down immediately.
func (h *Handle) Close() error {
	h.loop.ioClose(h)
	return nil
}

func (l *Loop) closeFromAnyThread(h *Handle, err error) {
	h.lastErr = err
	l.ioClose(h)
}

// ioClose is the internal entry point used both by Handle.Close and by
// error paths elsewhere in this package.
func (l *Loop) ioClose(h *Handle) {
	if !l.isLoopThread() {
		id := h.id
		l.postEvent(MaxPriority, func() {
			if h.id != id || h.flags.closed {
				return // stale: handle was reused under this fd
			}
			l.ioClose(h)
		})
		return
	}

	if h.flags.closed {
		return
	}

	if h.lastErr == nil && h.writeQueueLen() > 0 {
		h.flags.closePending = true
		timeout := h.closeTimeoutMs
		if timeout <= 0 {
			timeout = l.config.CloseTimeoutMs
		}
		l.armHandleTimer(&h.closeTimer, timeout, func() {
			h.lastErr = ErrTimeout
			h.flags.closePending = false
			l.finishClose(h)
		})
		return
	}

	l.finishClose(h)
}

// finishClose performs the actual teardown described in spec §4.E's
// "Otherwise" branch: mark closed, deregister, drain the write queue,
// invoke close_cb, free the TLS session, close the fd.
func (l *Loop) finishClose(h *Handle) {
	if h.flags.closed {
		return
	}
	h.flags.closed = true

	l.cancelHandleTimer(&h.connectTimer)
	l.cancelHandleTimer(&h.closeTimer)
	l.cancelHandleTimer(&h.keepaliveTimer)
	l.cancelHandleTimer(&h.heartbeatTimer)

	if h.registeredEvents != 0 {
		_ = l.ioDel(h, h.registeredEvents)
	}

	h.writeMu.Lock()
	h.writeQueue = nil
	h.writeMu.Unlock()

	if h.tls != nil {
		h.tls.close()
	}

	if h.upstream != nil {
		other := h.upstream
		h.upstream = nil
		if other.upstream == h {
			other.upstream = nil
			l.ioClose(other)
		}
	}

	if !h.sharedFD {
		_ = unix.Close(h.fd)
	}
	l.handles.set(h.fd, nil)

	if h.active {
		h.active = false
		l.activeCount.Add(-1)
	}

	if h.onClose != nil {
		h.onClose(h, h.lastErr)
	}
}

// armHandleTimer creates or resets a handle-owned timer (connect-
// timeout, close-timeout, keepalive, heartbeat). Setting ms <= 0 deletes
// the timer instead (spec §4.E).
func (l *Loop) armHandleTimer(slot **Timer, ms int64, cb func()) {
	l.cancelHandleTimer(slot)
	if ms <= 0 {
		return
	}
	*slot = l.AddTimeout(ms, 1, func(*Timer) { cb() })
}

func (l *Loop) cancelHandleTimer(slot **Timer) {
	if *slot != nil {
		(*slot).Cancel()
		*slot = nil
	}
}

// SetConnectTimeout, SetCloseTimeout, SetKeepalive configure the
// respective per-handle timers (0 disables). They take effect the next
// time the relevant operation arms the timer (spec §6).
func (h *Handle) SetConnectTimeout(ms int64) { h.connectTimeoutMs = ms }
func (h *Handle) SetCloseTimeout(ms int64)   { h.closeTimeoutMs = ms }

func (h *Handle) SetKeepalive(ms int64) {
	h.keepaliveMs = ms
	if ms <= 0 {
		h.loop.cancelHandleTimer(&h.keepaliveTimer)
	}
}

// SetHeartbeat arms (or disarms, for d <= 0) a recurring heartbeat timer
// that invokes the handle's onHeartbeat callback.
func (h *Handle) SetHeartbeat(d time.Duration) {
	ms := d.Milliseconds()
	h.heartbeatMs = ms
	h.loop.cancelHandleTimer(&h.heartbeatTimer)
	if ms <= 0 {
		return
	}
	h.heartbeatTimer = h.loop.AddTimeout(ms, RepeatForever, func(*Timer) {
		if h.onHeartbeat != nil {
			h.onHeartbeat(h)
		}
	})
}
