package loop

import (
	"golang.org/x/sys/unix"
)

// Connect performs a non-blocking connect to addr on h's (already
// created, not-yet-connected) socket fd, arming the connect-timeout
// timer and registering write interest per spec §4.E. EINPROGRESS is the
// expected outcome; a synchronous refusal (e.g. ECONNREFUSED for a
// loopback target with nothing listening) closes the handle, delivering
// the error through OnClose like any other syscall error, and is also
// returned to the caller. Hops onto l's own goroutine
// when called off-thread, since it arms a timer and registers interest.
func (l *Loop) Connect(h *Handle, addr unix.Sockaddr) error {
	return l.callOnLoopThreadErr(func() error { return l.connectLocal(h, addr) })
}

func (l *Loop) connectLocal(h *Handle, addr unix.Sockaddr) error {
	h.flags.connect = true
	h.peerAddr = addr

	err := unix.Connect(h.fd, addr)
	if err == nil {
		// Rare but possible on a local/loopback connect: succeeded immediately.
		l.finishConnect(h)
		return nil
	}
	if err != unix.EINPROGRESS {
		h.lastErr = err
		l.ioClose(h)
		return err
	}

	timeout := h.connectTimeoutMs
	if timeout <= 0 {
		timeout = l.config.ConnectTimeoutMs
	}
	l.armHandleTimer(&h.connectTimer, timeout, func() {
		h.lastErr = ErrTimeout
		l.ioClose(h)
	})

	return l.ioAdd(h, IOEventWrite)
}

// handleConnectReady runs once per connect (oneshot semantics via the
// connect flag): read back the peer address, clear write interest,
// cancel the connect timer, and either start a TLS handshake or invoke
// connect_cb directly (spec §4.E).
func (l *Loop) handleConnectReady(h *Handle) {
	h.flags.connect = false
	_ = l.ioDel(h, IOEventWrite)
	l.cancelHandleTimer(&h.connectTimer)

	if errno, err := unix.GetsockoptInt(h.fd, unix.SOL_SOCKET, unix.SO_ERROR); err == nil && errno != 0 {
		h.lastErr = unix.Errno(errno)
		l.ioClose(h)
		return
	}

	l.finishConnect(h)
}

func (l *Loop) finishConnect(h *Handle) {
	if peer, err := unix.Getpeername(h.fd); err == nil {
		h.peerAddr = peer
	}
	if local, err := unix.Getsockname(h.fd); err == nil {
		h.localAddr = local
	}
	if h.keepaliveMs == 0 {
		h.keepaliveMs = l.config.KeepaliveMs
	}

	if h.tls != nil {
		h.tls.beginHandshake(false)
		return
	}

	_ = l.ioAdd(h, IOEventRead)

	if h.onConnect != nil {
		h.onConnect(h, nil)
	}
}
