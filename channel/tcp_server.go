package channel

import (
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/southbear-club/ars-go/loop"
)

// TCPServer accepts connections on a listening handle, tracking live
// channels by fd and enforcing an optional connection ceiling, grounded
// on evpp::TcpServer.
type TCPServer struct {
	pool *LoopThreadPool

	listenAddr string
	maxConns   uint32
	tlsConfig  *tls.Config

	mu        sync.Mutex
	channels  map[int]*SocketChannel
	listener  *loop.Handle   // primary: the loop that actually owns the fd
	listeners []*loop.Handle // one per pool loop, all sharing listener's fd

	onConnection    func(*SocketChannel)
	onMessage       func(*SocketChannel, []byte)
	onWriteComplete func(*SocketChannel, int)
}

// NewTCPServer constructs a server that will listen on addr once
// Start is called, distributing accepted connections across pool.
func NewTCPServer(pool *LoopThreadPool, addr string) *TCPServer {
	return &TCPServer{
		pool:       pool,
		listenAddr: addr,
		maxConns:   0xFFFFFFFF,
		channels:   make(map[int]*SocketChannel),
	}
}

// SetMaxConnections caps the number of simultaneously tracked channels;
// connections accepted past the cap are closed immediately (spec-adjacent
// supplement grounded on TcpServer::max_connections/onAccept).
func (s *TCPServer) SetMaxConnections(n uint32) { s.maxConns = n }

// EnableTLS makes every connection accepted from here on perform a
// server-side TLS handshake under cfg before OnConnection fires.
func (s *TCPServer) EnableTLS(cfg *tls.Config) { s.tlsConfig = cfg }

// OnConnection installs the callback fired when a channel connects or
// disconnects.
func (s *TCPServer) OnConnection(cb func(*SocketChannel)) { s.onConnection = cb }

// OnMessage installs the callback fired for every inbound read on any
// accepted channel.
func (s *TCPServer) OnMessage(cb func(*SocketChannel, []byte)) { s.onMessage = cb }

// OnWriteComplete installs the callback fired when a queued write on any
// accepted channel finishes draining.
func (s *TCPServer) OnWriteComplete(cb func(*SocketChannel, int)) { s.onWriteComplete = cb }

// ListenAddr returns the server's actual bound "host:port" once Start
// has succeeded (useful when constructed with an ephemeral ":0" port),
// or "" if not yet listening.
func (s *TCPServer) ListenAddr() string {
	if s.listener == nil {
		return ""
	}
	return sockaddrString(s.listener.LocalAddr())
}

// ConnectionNum returns the number of currently tracked channels.
func (s *TCPServer) ConnectionNum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

// Start binds and listens on the server's address on the pool's first
// loop, then registers accept on that same listening fd on every other
// loop in the pool too (spec §4.F: "on each loop's thread ... on the
// same listen fd"), so a multi-loop pool actually distributes accepted
// connections instead of funnelling them all through one loop. Grounded
// on TcpServer::start/onAccept.
func (s *TCPServer) Start() error {
	if s.pool.Size() == 0 {
		return fmt.Errorf("channel: no loop available in pool")
	}

	acceptCB := func(_, conn *loop.Handle) {
		if s.ConnectionNum() >= int(s.maxConns) {
			_ = conn.Close()
			return
		}
		s.adopt(conn)
	}

	primary := s.pool.Loop(0)
	listener, err := primary.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.listeners = append(s.listeners, listener)

	if s.tlsConfig != nil {
		listener.EnableTLS(s.tlsConfig)
	}
	listener.SetAcceptCallback(acceptCB)
	if err := primary.Accept(listener); err != nil {
		return err
	}

	for i := 1; i < s.pool.Size(); i++ {
		l := s.pool.Loop(i)
		h, err := l.AdoptListener(listener.FD())
		if err != nil {
			return err
		}
		if s.tlsConfig != nil {
			h.EnableTLS(s.tlsConfig)
		}
		h.SetAcceptCallback(acceptCB)
		s.listeners = append(s.listeners, h)
		if err := l.Accept(h); err != nil {
			return err
		}
	}

	return nil
}

// Stop closes every per-loop listening handle; already-accepted channels
// are left running (matching the original's server.stop() only tearing
// down the loop threads, not individual channels). The handles sharing
// the fd (AdoptListener's) are released first so only the primary
// handle's teardown ever calls close(2) on the fd.
func (s *TCPServer) Stop() error {
	if s.listener == nil {
		return nil
	}
	for _, h := range s.listeners {
		if h == s.listener {
			continue
		}
		_ = h.Close()
	}
	return s.listener.Close()
}

func (s *TCPServer) adopt(conn *loop.Handle) {
	sc := newSocketChannel(conn)
	sc.OnMessage(s.onMessage)
	sc.OnWriteComplete(s.onWriteComplete)

	s.mu.Lock()
	s.channels[conn.FD()] = sc
	s.mu.Unlock()

	sc.OnConnection(func(ch *SocketChannel) {
		if ch.Status() == StatusClosed {
			s.mu.Lock()
			delete(s.channels, ch.FD())
			s.mu.Unlock()
		}
		if s.onConnection != nil {
			s.onConnection(ch)
		}
	})

	sc.markConnected()
	if s.onConnection != nil {
		s.onConnection(sc)
	}
}
