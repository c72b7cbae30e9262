package loop

import "errors"

// Sentinel errors surfaced through Handle.LastError and close_cb,
// per spec §7 ("errors never propagate past a callback boundary").
var (
	// ErrTimeout is delivered when a connect-timeout, close-timeout, or
	// keepalive timeout elapses. TLS handshakes have no deadline of their
	// own.
	ErrTimeout = errors.New("eventloop: operation timed out")

	// ErrClosed is returned by Handle.Write once the handle has already
	// finished closing.
	ErrClosed = errors.New("eventloop: handle closed")

	// ErrNoPeerAddr is returned by a UDP/raw Write when no peer address
	// has been set via Connect or inferred from a received datagram.
	ErrNoPeerAddr = errors.New("eventloop: no peer address set")

	// ErrAlreadyRunning is returned by Run when the loop is not in the
	// stopped state.
	ErrAlreadyRunning = errors.New("eventloop: loop already running")

	// ErrMaxConnections names a reached connection ceiling. The accept
	// path never returns or delivers it: channel.TCPServer closes an
	// over-limit connection without setting an error on it.
	ErrMaxConnections = errors.New("eventloop: connection limit reached")

	// ErrTLSHandshakeFailed wraps an unrecoverable TLS handshake error
	// delivered via close_cb instead of connect_cb/accept_cb.
	ErrTLSHandshakeFailed = errors.New("eventloop: tls handshake failed")
)
