package channel

import (
	"sync"
	"time"

	"github.com/southbear-club/ars-go/loop"
)

// TCPClient dials a single outbound TCP connection, grounded on the
// client-side counterpart implied by evpp::TcpServer's channel wiring
// (the original ships client dialing via EventLoop::createsocket +
// connect helpers used symmetrically with the server's accept path).
//
// It also carries a reconnect policy (spec §4.F: "min_delay, max_delay,
// delay_policy: fixed or exponential"): when enabled, a close of the
// current channel schedules a fresh Connect after a backed-off delay
// instead of leaving the client disconnected.
type TCPClient struct {
	l    *loop.Loop
	addr string

	onConnection    func(*SocketChannel)
	onMessage       func(*SocketChannel, []byte)
	onWriteComplete func(*SocketChannel, int)

	mu               sync.Mutex
	reconnectEnabled bool
	minDelay         time.Duration
	maxDelay         time.Duration
	exponential      bool
	maxRetries       int
	attempt          int

	channel *SocketChannel
}

// NewTCPClient constructs a client that will dial addr on l once
// Connect is called. Reconnect is disabled until SetReconnectPolicy
// turns it on.
func NewTCPClient(l *loop.Loop, addr string) *TCPClient {
	return &TCPClient{l: l, addr: addr, minDelay: time.Second, maxDelay: 30 * time.Second}
}

func (c *TCPClient) OnConnection(cb func(*SocketChannel))         { c.onConnection = cb }
func (c *TCPClient) OnMessage(cb func(*SocketChannel, []byte))    { c.onMessage = cb }
func (c *TCPClient) OnWriteComplete(cb func(*SocketChannel, int)) { c.onWriteComplete = cb }

// SetReconnectPolicy configures automatic reconnection: minDelay/maxDelay
// bound the backoff, exponential selects doubling vs. fixed delay, and
// maxRetries caps the number of consecutive reconnect attempts since the
// last successful connect (0 means unlimited). Disabled by default.
func (c *TCPClient) SetReconnectPolicy(enabled bool, minDelay, maxDelay time.Duration, exponential bool, maxRetries int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectEnabled = enabled
	c.minDelay = minDelay
	c.maxDelay = maxDelay
	c.exponential = exponential
	c.maxRetries = maxRetries
}

// Connect starts a non-blocking dial; OnConnection fires once the
// connection completes (or fails, observable via the channel's closed
// status and the underlying handle's LastError). A close of the
// resulting channel schedules a reconnect if the policy is enabled.
func (c *TCPClient) Connect() (*SocketChannel, error) {
	h, err := c.l.Dial("tcp", c.addr)
	if err != nil {
		return nil, err
	}

	sc := newSocketChannel(h)
	sc.OnMessage(c.onMessage)
	sc.OnWriteComplete(c.onWriteComplete)
	sc.OnConnection(c.handleStatusChange)
	c.channel = sc

	h.SetConnectCallback(func(conn *loop.Handle, err error) {
		if err == nil {
			sc.markConnected()
			c.handleStatusChange(sc)
		}
	})

	return sc, nil
}

// handleStatusChange forwards to the user's OnConnection callback and
// drives the reconnect policy: a successful connect resets the retry
// counter, a close schedules the next attempt (close_cb per spec §4.F).
func (c *TCPClient) handleStatusChange(sc *SocketChannel) {
	status := sc.Status()
	if status == StatusConnected {
		c.mu.Lock()
		c.attempt = 0
		c.mu.Unlock()
	}
	if c.onConnection != nil {
		c.onConnection(sc)
	}
	if status == StatusClosed {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms a one-shot timer on the client's loop that
// re-dials after a back-off delay, as long as the policy is enabled and
// the retry ceiling hasn't been reached. Always called from close_cb, so
// always already on the loop's own goroutine - AddTimeout needs no
// cross-thread dispatch here.
func (c *TCPClient) scheduleReconnect() {
	c.mu.Lock()
	enabled := c.reconnectEnabled
	maxRetries := c.maxRetries
	attempt := c.attempt
	delay := c.nextDelayLocked(attempt)
	if enabled {
		c.attempt++
	}
	c.mu.Unlock()

	if !enabled {
		return
	}
	if maxRetries > 0 && attempt >= maxRetries {
		return
	}

	c.l.AddTimeout(delay.Milliseconds(), 1, func(*loop.Timer) {
		_, _ = c.Connect()
	})
}

// nextDelayLocked computes the backoff for the given attempt number
// (0-indexed). Caller holds c.mu.
func (c *TCPClient) nextDelayLocked(attempt int) time.Duration {
	if !c.exponential {
		return c.minDelay
	}
	d := c.minDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.maxDelay {
			return c.maxDelay
		}
	}
	if d > c.maxDelay {
		d = c.maxDelay
	}
	return d
}

// Channel returns the client's channel once Connect has been called.
func (c *TCPClient) Channel() *SocketChannel { return c.channel }
