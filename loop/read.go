package loop

import (
	"golang.org/x/sys/unix"
)

// handleReadReady implements spec §4.E's read path: branch by io-type,
// drain until EAGAIN, treat a 0-byte read as peer close, and reset the
// keepalive timer on every successful read. Never invoked for a TLS
// handle: its fd is owned by a dedicated goroutine (tls.go) and is never
// registered with the watcher.
func (l *Loop) handleReadReady(h *Handle) {
	buf := h.readBuf
	if buf == nil {
		buf = l.sharedReadBuf
	}

	for {
		var n int
		var err error

		switch {
		case h.typ == IOTypeUDP || h.typ == IOTypeIP:
			var from unix.Sockaddr
			n, from, err = unix.Recvfrom(h.fd, buf, 0)
			if from != nil {
				h.peerAddr = from
			}
		default:
			n, err = unix.Read(h.fd, buf)
		}

		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR {
				continue
			}
			h.lastErr = err
			l.ioClose(h)
			return
		}

		if n == 0 {
			// Peer closed (spec §4.E: "on 0 ⇒ treat as peer close").
			l.ioClose(h)
			return
		}

		l.resetKeepalive(h)

		if h.onRead != nil {
			h.onRead(h, buf[:n])
		}

		// Drain trick: loop while the read fills the buffer; a short
		// read means the socket is (probably) empty for now.
		if n < len(buf) {
			return
		}
	}
}

// resetKeepalive implements spec §8 property 9: a read of >=1 byte
// resets the keepalive timer so it will not fire before now + T.
func (l *Loop) resetKeepalive(h *Handle) {
	if h.keepaliveMs <= 0 {
		return
	}
	l.armHandleTimer(&h.keepaliveTimer, h.keepaliveMs, func() {
		h.lastErr = ErrTimeout
		l.ioClose(h)
	})
}
