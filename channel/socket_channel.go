package channel

import (
	"time"

	"github.com/southbear-club/ars-go/loop"
)

// SocketChannel is one accepted or dialed connection, grounded on
// evpp::SocketChannel: it owns the wiring between a loop.Handle's raw
// callbacks and the façade's higher-level (channel-shaped) callbacks.
type SocketChannel struct {
	Channel
}

// newSocketChannel wraps an already-constructed handle and wires its
// raw read/write/close callbacks through to the channel-shaped ones,
// matching TcpServer::onAccept's channel->onread/onwrite/onclose wiring.
func newSocketChannel(h *loop.Handle) *SocketChannel {
	sc := &SocketChannel{Channel: Channel{handle: h, status: StatusConnecting}}
	h.SetUserData(sc)

	h.SetReadCallback(func(_ *loop.Handle, data []byte) {
		sc.mu.RLock()
		cb := sc.onMessage
		sc.mu.RUnlock()
		if cb != nil {
			cb(sc, data)
		}
	})
	h.SetWriteCallback(func(_ *loop.Handle, n int) {
		sc.mu.RLock()
		cb := sc.onWriteComplete
		sc.mu.RUnlock()
		if cb != nil {
			cb(sc, n)
		}
	})
	h.SetCloseCallback(func(_ *loop.Handle, _ error) {
		sc.setStatus(StatusClosed)
		sc.mu.RLock()
		cb := sc.onConnection
		sc.mu.RUnlock()
		if cb != nil {
			cb(sc)
		}
	})
	return sc
}

// OnMessage installs the callback invoked for every inbound read.
func (sc *SocketChannel) OnMessage(cb func(*SocketChannel, []byte)) {
	sc.mu.Lock()
	sc.onMessage = cb
	sc.mu.Unlock()
}

// OnWriteComplete installs the callback invoked once a queued write
// finishes draining.
func (sc *SocketChannel) OnWriteComplete(cb func(*SocketChannel, int)) {
	sc.mu.Lock()
	sc.onWriteComplete = cb
	sc.mu.Unlock()
}

// OnConnection installs the callback invoked on both connect/accept
// completion and on close, mirroring the original's single
// ConnectionCallback firing at both lifecycle edges.
func (sc *SocketChannel) OnConnection(cb func(*SocketChannel)) {
	sc.mu.Lock()
	sc.onConnection = cb
	sc.mu.Unlock()
}

// OnHeartbeat installs a recurring heartbeat callback at interval d.
// Supplements the handle-level heartbeat timer (spec §3/§6) with a
// user-visible channel-façade hook, since the distilled spec's façade
// section has a heartbeat timer but no surfaced callback for it.
func (sc *SocketChannel) OnHeartbeat(d time.Duration, cb func(*SocketChannel)) {
	sc.mu.Lock()
	sc.onHeartbeat = cb
	sc.mu.Unlock()
	sc.handle.SetHeartbeatCallback(d, func(*loop.Handle) {
		sc.mu.RLock()
		hb := sc.onHeartbeat
		sc.mu.RUnlock()
		if hb != nil {
			hb(sc)
		}
	})
}

func (sc *SocketChannel) markConnected() { sc.setStatus(StatusConnected) }
