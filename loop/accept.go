package loop

import (
	"golang.org/x/sys/unix"
)

// Accept sets the accept flag and registers read interest on a listening
// handle (spec §4.E). Hops onto l's own goroutine when called off-thread,
// since registering interest touches the watcher.
func (l *Loop) Accept(h *Handle) error {
	return l.callOnLoopThreadErr(func() error {
		h.flags.accept = true
		return l.ioAdd(h, IOEventRead)
	})
}

// handleAcceptReady loops accept(2) until EAGAIN; each successful accept
// produces a new Handle inheriting the server's accept_cb and user data,
// optionally wrapped in a server-side TLS handshake. The user's
// accept_cb only fires once the handshake completes (or immediately for
// plaintext), per spec §4.E.
func (l *Loop) handleAcceptReady(h *Handle) {
	for {
		connFd, peer, err := unix.Accept(h.fd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EINTR {
				continue
			}
			return
		}

		if err := unix.SetNonblock(connFd, true); err != nil {
			_ = unix.Close(connFd)
			continue
		}

		conn := l.Handle(connFd)
		conn.peerAddr = peer
		if local, lerr := unix.Getsockname(connFd); lerr == nil {
			conn.localAddr = local
		}
		conn.onAccept = h.onAccept
		conn.onRead = h.onRead
		conn.onWrite = h.onWrite
		conn.onClose = h.onClose
		conn.userData = h.userData
		conn.keepaliveMs = l.config.KeepaliveMs

		if h.tls != nil {
			conn.tls = h.tls.newSession(conn)
			conn.typ = IOTypeSSL
			conn.acceptServer = h
			conn.tls.beginHandshake(true)
			continue
		}

		l.finishAccept(h, conn)
	}
}

// finishAccept registers read interest and invokes accept_cb. Skipped
// for a TLS connection's plaintext fd: its background goroutine (see
// tls.go) owns the fd exclusively and is never registered with the
// watcher.
func (l *Loop) finishAccept(server, conn *Handle) {
	if conn.tls == nil {
		_ = l.ioAdd(conn, IOEventRead)
	}
	if server.onAccept != nil {
		server.onAccept(server, conn)
	}
}
