package loop

import (
	"net"
	"sync"
	"time"

	"crypto/tls"

	"golang.org/x/sys/unix"
)

// tlsConfig carries the crypto/tls.Config shared by all sessions derived
// from one listener or client dial (SPEC_FULL.md's TLS supplement). A
// nil *tls.Config uses crypto/tls's own defaults.
type tlsConfig struct {
	cfg *tls.Config
}

// EnableTLS wraps h's fd in a TLS session using cfg (nil for defaults).
// Must be called before Connect/Accept starts the underlying handshake;
// for a listening handle, every accepted connection inherits cfg via
// newSession.
func (h *Handle) EnableTLS(cfg *tls.Config) {
	h.tls = &tlsState{parent: &tlsConfig{cfg: cfg}, handle: h}
}

// tlsState owns a TLS session for the life of its handle. crypto/tls.Conn
// only understands blocking net.Conn semantics: it caches the first
// error Handshake/Read/Write ever sees in an internal field and replays
// it on every later call, so driving it one readiness event at a time
// (the way the plaintext path drives read(2)/write(2)) wedges permanently
// the first time it sees EAGAIN. Instead a dedicated goroutine runs the
// handshake to completion and then pumps application data for as long as
// the session lives, blocking only itself - via a private poll(2) wait on
// the still-non-blocking fd, never by flipping the fd back to blocking -
// so the loop goroutine never stalls. Reads are relayed to the loop
// thread through postEvent; writes are queued by the loop thread and
// drained by a second goroutine under the same lifetime.
type tlsState struct {
	parent   *tlsConfig
	handle   *Handle
	conn     *tls.Conn
	isServer bool

	writeMu    sync.Mutex
	writeQueue [][]byte
	writeWake  chan struct{}
	closeCh    chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once
}

func (t *tlsState) newSession(h *Handle) *tlsState {
	return &tlsState{parent: t.parent, handle: h}
}

// beginHandshake starts the background goroutine that owns this
// session's fd for its whole TLS lifetime. completion (success or
// failure) is reported back to the loop thread via completeTLSHandshake.
func (t *tlsState) beginHandshake(isServer bool) {
	t.isServer = isServer
	t.writeWake = make(chan struct{}, 1)
	t.closeCh = make(chan struct{})
	t.doneCh = make(chan struct{})

	fc := &fdConn{fd: t.handle.fd}
	if isServer {
		t.conn = tls.Server(fc, t.parent.cfg)
	} else {
		t.conn = tls.Client(fc, t.parent.cfg)
	}

	h := t.handle
	l := h.loop
	go func() {
		err := t.conn.Handshake()
		l.postEvent(MaxPriority, func() { l.completeTLSHandshake(h, err) })
		if err != nil {
			close(t.doneCh)
			return
		}
		t.pump(l, h)
	}()
}

// completeTLSHandshake delivers a background handshake's outcome via
// accept_cb/connect_cb, exactly like the plaintext paths in accept.go and
// connect.go, once it's safe to do so on the loop's own goroutine.
func (l *Loop) completeTLSHandshake(h *Handle, err error) {
	if h.flags.closed {
		return
	}
	if err != nil {
		h.lastErr = ErrTLSHandshakeFailed
		l.ioClose(h)
		return
	}
	if h.tls.isServer {
		if h.acceptServer != nil {
			server := h.acceptServer
			h.acceptServer = nil
			l.finishAccept(server, h)
		}
	} else if h.onConnect != nil {
		h.onConnect(h, nil)
	}
}

// pump runs for the life of an established session: one goroutine reads
// decrypted application data and relays it to the loop thread, a second
// drains queued writes, until the peer goes away or close() shuts the fd
// down from underneath them.
func (t *tlsState) pump(l *Loop, h *Handle) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-t.writeWake:
			case <-t.closeCh:
				return
			}
			for {
				t.writeMu.Lock()
				if len(t.writeQueue) == 0 {
					t.writeMu.Unlock()
					break
				}
				buf := t.writeQueue[0]
				t.writeQueue = t.writeQueue[1:]
				t.writeMu.Unlock()
				if _, err := t.conn.Write(buf); err != nil {
					l.postEvent(MaxPriority, func() { l.closeFromAnyThread(h, err) })
					return
				}
			}
			select {
			case <-t.closeCh:
				return
			default:
			}
		}
	}()

	buf := make([]byte, 32*1024)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			l.postEvent(0, func() {
				if h.flags.closed {
					return
				}
				l.resetKeepalive(h)
				if h.onRead != nil {
					h.onRead(h, data)
				}
			})
		}
		if err != nil {
			l.postEvent(MaxPriority, func() { l.closeFromAnyThread(h, err) })
			break
		}
	}

	close(t.closeCh)
	<-writerDone
	close(t.doneCh)
}

// write queues buf for the writer goroutine and reports it fully
// accepted, matching the handoff semantics already used by the
// raw-syscall path (a successful write(2) doesn't guarantee delivery
// either).
func (t *tlsState) write(buf []byte) (int, error) {
	cp := make([]byte, len(buf))
	copy(cp, buf)

	t.writeMu.Lock()
	t.writeQueue = append(t.writeQueue, cp)
	t.writeMu.Unlock()

	select {
	case t.writeWake <- struct{}{}:
	default:
	}
	return len(buf), nil
}

// close unblocks the handshake/pump goroutines by shutting the socket
// down for both directions - without closing the fd, so no fd-number
// reuse race is possible - then waits for them to notice and exit before
// finishClose actually closes the fd.
func (t *tlsState) close() {
	t.closeOnce.Do(func() {
		_ = unix.Shutdown(t.handle.fd, unix.SHUT_RDWR)
		if t.doneCh != nil {
			<-t.doneCh
		}
	})
}

// fdConn adapts a raw non-blocking fd to the blocking net.Conn interface
// crypto/tls.Conn requires. On EAGAIN it blocks the calling goroutine in
// poll(2) until the fd is ready and retries, rather than surfacing a
// would-block error crypto/tls would cache and replay forever; the fd
// itself stays non-blocking throughout; this call is never made from the
// loop goroutine, so blocking here costs nothing in reactor latency.
type fdConn struct {
	fd int
}

func (c *fdConn) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, b)
		if err == nil {
			return n, nil
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := waitFD(c.fd, unix.POLLIN); werr != nil {
				return 0, werr
			}
			continue
		}
		return n, err
	}
}

func (c *fdConn) Write(b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := unix.Write(c.fd, b[total:])
		if n > 0 {
			total += n
		}
		if err == nil {
			continue
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if werr := waitFD(c.fd, unix.POLLOUT); werr != nil {
				return total, werr
			}
			continue
		}
		return total, err
	}
	return total, nil
}

func (c *fdConn) Close() error                    { return nil } // fd lifecycle owned by Handle
func (c *fdConn) LocalAddr() net.Addr             { return fdAddr{} }
func (c *fdConn) RemoteAddr() net.Addr            { return fdAddr{} }
func (c *fdConn) SetDeadline(time.Time) error      { return nil }
func (c *fdConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fdConn) SetWriteDeadline(time.Time) error { return nil }

type fdAddr struct{}

func (fdAddr) Network() string { return "fd" }
func (fdAddr) String() string  { return "fd" }

// waitFD blocks the calling goroutine - never the loop goroutine - until
// fd is ready for events or an error occurs, via its own independent
// poll(2) call. Multiple independent waiters (this and the loop's own
// epoll/kqueue registration) on the same fd is standard, well-defined
// POSIX behaviour; it does not disturb the loop's own readiness
// tracking, because a TLS handle's fd is never registered with the
// watcher while this goroutine owns it.
func waitFD(fd int, events int16) error {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
}
