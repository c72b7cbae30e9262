package loop

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// IOType classifies a Handle's underlying fd (spec §3).
type IOType int

const (
	IOTypeUnknown IOType = iota
	IOTypeTCP
	IOTypeUDP
	IOTypeIP
	IOTypeSSL
	IOTypeTCPListen
	IOTypeStdio
	IOTypeFile
)

func (t IOType) String() string {
	switch t {
	case IOTypeTCP:
		return "tcp"
	case IOTypeUDP:
		return "udp"
	case IOTypeIP:
		return "ip"
	case IOTypeSSL:
		return "ssl"
	case IOTypeTCPListen:
		return "tcp-listen"
	case IOTypeStdio:
		return "stdio"
	case IOTypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// flags mirrors spec §3's per-handle bit-flags.
type handleFlags struct {
	ready       bool
	closed      bool
	accept      bool
	connect     bool
	recv        bool
	send        bool
	recvfrom    bool
	sendto      bool
	closePending bool
}

// Handle is the per-fd I/O event (spec §3/§4.E). It is owned entirely by
// its Loop; all mutation other than Write/Close happens on the loop's
// goroutine. The zero value is not usable; obtain one via Loop.Handle.
type Handle struct {
	event

	fd   int
	id   uint32
	typ  IOType

	flags handleFlags

	registeredEvents IOEvents
	readyEvents      IOEvents

	lastErr error

	localAddr unix.Sockaddr
	peerAddr  unix.Sockaddr

	readBuf []byte // per-handle override; nil means use loop's shared buffer

	writeMu    sync.Mutex
	writeQueue []writeEntry

	onRead    func(*Handle, []byte)
	onWrite   func(*Handle, int)
	onClose   func(*Handle, error)
	onAccept  func(*Handle, *Handle)
	onConnect func(*Handle, error)
	onHeartbeat func(*Handle)

	connectTimeoutMs int64
	closeTimeoutMs   int64
	keepaliveMs      int64
	heartbeatMs      int64

	connectTimer  *Timer
	closeTimer    *Timer
	keepaliveTimer *Timer
	heartbeatTimer *Timer

	tls *tlsState // nil unless EnableTLS called

	// sharedFD marks a Handle constructed via AdoptListener: it shares a
	// listening fd owned by some other Loop, so its teardown must
	// deregister/deactivate without ever calling close(2) on the fd.
	sharedFD bool

	// acceptServer holds the listening handle this connection came from
	// while its server-side TLS handshake is in flight, so accept_cb can
	// fire once the handshake completes instead of at raw accept(2) time.
	acceptServer *Handle

	upstream *Handle // transparent-proxy partner, nil otherwise

	// kqueue change-list bookkeeping (spec §9). Reset unconditionally by
	// ioReady so reuse after io_free never observes stale indices, even
	// though this implementation's kqueueWatcher doesn't batch changes.
	kqueueIndex [2]int

	userData any
}

// writeEntry is one owned, partially-sent buffer in a Handle's write
// queue (spec §3's Write-queue entry). Invariant: 0 <= offset <= len(buf).
type writeEntry struct {
	buf    []byte
	offset int
}

// ID returns the handle's stable identifier, assigned once at ready time
// and distinct from the fd so cross-thread close delivery can detect fd
// reuse (spec §8 property 2).
func (h *Handle) ID() uint32 { return h.id }

// FD returns the underlying file descriptor.
func (h *Handle) FD() int { return h.fd }

// Type returns the handle's detected or assigned IOType.
func (h *Handle) Type() IOType { return h.typ }

// LastError returns the error, if any, that caused or will cause close.
func (h *Handle) LastError() error { return h.lastErr }

// LocalAddr and PeerAddr return the handle's cached socket addresses.
func (h *Handle) LocalAddr() unix.Sockaddr { return h.localAddr }
func (h *Handle) PeerAddr() unix.Sockaddr  { return h.peerAddr }

// UserData returns and sets an opaque, caller-owned context pointer.
func (h *Handle) UserData() any          { return h.userData }
func (h *Handle) SetUserData(v any)      { h.userData = v }

// SetReadCallback, SetWriteCallback, SetCloseCallback, SetAcceptCallback
// and SetConnectCallback install the handle's five typed callbacks
// (spec §3/§6).
func (h *Handle) SetReadCallback(cb func(h *Handle, data []byte))      { h.onRead = cb }
func (h *Handle) SetWriteCallback(cb func(h *Handle, n int))           { h.onWrite = cb }
func (h *Handle) SetCloseCallback(cb func(h *Handle, err error))       { h.onClose = cb }
func (h *Handle) SetAcceptCallback(cb func(server, conn *Handle))      { h.onAccept = cb }
func (h *Handle) SetConnectCallback(cb func(h *Handle, err error))     { h.onConnect = cb }

// SetHeartbeatCallback installs a heartbeat interval and callback (0
// disables it per spec §6). Supplements the original's heartbeat timer
// with a user-visible hook (SPEC_FULL.md).
func (h *Handle) SetHeartbeatCallback(interval time.Duration, cb func(h *Handle)) {
	h.onHeartbeat = cb
	h.SetHeartbeat(interval)
}

// SetReadBuffer overrides the shared per-loop read buffer for this handle.
func (h *Handle) SetReadBuffer(buf []byte) { h.readBuf = buf }

// Handle looks up or lazily constructs the handle for fd (io_get, spec
// §4.E), resizing the handle table and detecting its IOType via
// getsockopt(SO_TYPE) on first lookup, exactly as spec describes.
func (l *Loop) Handle(fd int) *Handle {
	if h := l.handles.get(fd); h != nil {
		return h
	}
	h := &Handle{
		event: newEvent(l, EventTypeIO, 0),
		fd:    fd,
		typ:   detectIOType(fd),
	}
	h.event.fire = func() { l.dispatchHandle(h) }
	h.event.free = func() {}
	l.ioReady(h)
	l.handles.set(fd, h)
	return h
}

// ioReady assigns the handle's stable id from a process-wide monotonic
// counter (so ids are also unique within each loop) and resets watcher-private bookkeeping. Idempotent and safe
// to call again on a reused handle slot (spec §9's open question on
// kqueue event_index staleness: always reset here).
func (l *Loop) ioReady(h *Handle) {
	h.id = nextHandleID()
	h.flags.ready = true
	h.kqueueIndex[0] = -1
	h.kqueueIndex[1] = -1
}

func detectIOType(fd int) IOType {
	switch fd {
	case 0, 1, 2:
		return IOTypeStdio
	}
	typ, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return IOTypeFile
	}
	switch typ {
	case unix.SOCK_STREAM:
		return IOTypeTCP
	case unix.SOCK_DGRAM:
		return IOTypeUDP
	case unix.SOCK_RAW:
		return IOTypeIP
	default:
		return IOTypeFile
	}
}

// Watch registers events on h directly, for handles with no
// accept/connect handshake to drive registration implicitly (e.g. a
// bound UDP socket, which is ready to read as soon as it's created).
func (l *Loop) Watch(h *Handle, events IOEvents) error {
	return l.ioAdd(h, events)
}

// Unwatch clears events on h previously registered via Watch, Accept,
// or Connect.
func (l *Loop) Unwatch(h *Handle, events IOEvents) error {
	return l.ioDel(h, events)
}

// ioAdd registers residual events with the watcher and activates the
// handle if it wasn't already (spec §4.E). Idempotent in events: it is
// safe to call repeatedly; the new interest is OR'd in.
func (l *Loop) ioAdd(h *Handle, events IOEvents) error {
	if !h.active {
		h.active = true
		l.activeCount.Add(1)
	}
	residual := events &^ h.registeredEvents
	if residual == 0 {
		return nil
	}
	if err := l.watcher.add(h.fd, residual); err != nil {
		return err
	}
	h.registeredEvents |= residual
	return nil
}

// ioDel clears bits in the watcher; if no interest remains the handle is
// marked inactive but its struct is retained (spec §4.E).
func (l *Loop) ioDel(h *Handle, events IOEvents) error {
	clear := events & h.registeredEvents
	if clear == 0 {
		return nil
	}
	if err := l.watcher.del(h.fd, clear); err != nil {
		return err
	}
	h.registeredEvents &^= clear
	if h.registeredEvents == 0 && h.active {
		h.active = false
		l.activeCount.Add(-1)
	}
	return nil
}

// dispatchHandle is the watcher-ready callback routed through the
// event's generic fire slot; it runs whichever protocol-specific
// handler the handle's current role (accept/connect/read/write)
// requires, per spec §4.E.
func (l *Loop) dispatchHandle(h *Handle) {
	if h.flags.closed {
		return
	}
	ev := h.readyEvents

	if h.flags.accept && ev.Has(IOEventRead) {
		l.handleAcceptReady(h)
		return
	}
	if h.flags.connect && ev.Has(IOEventWrite) {
		l.handleConnectReady(h)
		return
	}
	if ev.Has(IOEventRead) {
		l.handleReadReady(h)
	}
	if !h.flags.closed && ev.Has(IOEventWrite) {
		l.handleWriteReady(h)
	}
}
