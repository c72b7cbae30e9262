package channel

import "github.com/southbear-club/ars-go/loop"

// UDPServer wraps a bound, non-blocking UDP socket as a channel façade.
// UDP has no accept/connect handshake, so the server is itself the one
// channel: every datagram arrives through OnMessage, and Write targets
// the last peer a datagram was received from.
type UDPServer struct {
	Channel
}

// NewUDPServer binds addr on l and returns the wrapping channel.
func NewUDPServer(l *loop.Loop, addr string) (*UDPServer, error) {
	h, err := l.Listen("udp", addr)
	if err != nil {
		return nil, err
	}
	if err := l.Watch(h, loop.IOEventRead); err != nil {
		_ = h.Close()
		return nil, err
	}
	s := &UDPServer{Channel{handle: h, status: StatusConnected}}
	h.SetUserData(s)
	return s, nil
}

// OnMessage installs the callback invoked for every inbound datagram.
func (s *UDPServer) OnMessage(cb func(*Channel, []byte)) {
	s.handle.SetReadCallback(func(h *loop.Handle, data []byte) {
		cb(&s.Channel, data)
	})
}

// UDPClient wraps a UDP socket whose peer address is preset (the socket
// is not connect(2)ed), so Write sends to that peer without needing a
// destination per call.
type UDPClient struct {
	Channel
}

// NewUDPClient creates a UDP socket with addr set as its implicit peer.
func NewUDPClient(l *loop.Loop, addr string) (*UDPClient, error) {
	h, err := l.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	if err := l.Watch(h, loop.IOEventRead); err != nil {
		_ = h.Close()
		return nil, err
	}
	c := &UDPClient{Channel{handle: h, status: StatusConnected}}
	h.SetUserData(c)
	return c, nil
}

// OnMessage installs the callback invoked for every inbound datagram.
// Datagrams are not filtered by source, and each one's sender becomes
// the peer that later Writes target.
func (c *UDPClient) OnMessage(cb func(*Channel, []byte)) {
	c.handle.SetReadCallback(func(h *loop.Handle, data []byte) {
		cb(&c.Channel, data)
	})
}
