package channel

import (
	"testing"
	"time"
)

// TestTCPEchoRoundTrip dials a client against a server on a one-loop
// pool and checks a written payload comes back unchanged, exercising
// Listen/Dial/Accept/Connect/read/write end to end (scenario S1: TCP
// echo).
func TestTCPEchoRoundTrip(t *testing.T) {
	pool, err := NewLoopThreadPool(1)
	if err != nil {
		t.Fatalf("NewLoopThreadPool: %v", err)
	}
	pool.Start(nil)
	defer func() {
		pool.Stop()
		pool.Join()
	}()

	server := NewTCPServer(pool, "127.0.0.1:0")
	server.OnMessage(func(sc *SocketChannel, data []byte) {
		_, _ = sc.Write(data)
	})
	if err := server.Start(); err != nil {
		t.Fatalf("server.Start: %v", err)
	}
	defer server.Stop()

	l := pool.Loop(0)
	client := NewTCPClient(l, server.ListenAddr())

	connected := make(chan struct{})
	received := make(chan []byte, 1)
	client.OnConnection(func(sc *SocketChannel) {
		if sc.Status() == StatusConnected {
			close(connected)
		}
	})
	client.OnMessage(func(_ *SocketChannel, data []byte) {
		out := make([]byte, len(data))
		copy(out, data)
		received <- out
	})

	sc, err := client.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}

	payload := []byte("ping")
	if _, err := sc.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != "ping" {
			t.Fatalf("echoed payload = %q, want %q", got, "ping")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("echo never arrived")
	}
}

func TestTCPServerEnforcesMaxConnections(t *testing.T) {
	pool, err := NewLoopThreadPool(1)
	if err != nil {
		t.Fatalf("NewLoopThreadPool: %v", err)
	}
	pool.Start(nil)
	defer func() {
		pool.Stop()
		pool.Join()
	}()

	server := NewTCPServer(pool, "127.0.0.1:0")
	server.SetMaxConnections(1)
	if err := server.Start(); err != nil {
		t.Fatalf("server.Start: %v", err)
	}
	defer server.Stop()

	addr := server.ListenAddr()
	l := pool.Loop(0)

	c1 := NewTCPClient(l, addr)
	if _, err := c1.Connect(); err != nil {
		t.Fatalf("Connect #1: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := server.ConnectionNum(); n != 1 {
		t.Fatalf("ConnectionNum after 1st connect = %d, want 1", n)
	}

	c2 := NewTCPClient(l, addr)
	if _, err := c2.Connect(); err != nil {
		t.Fatalf("Connect #2: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := server.ConnectionNum(); n != 1 {
		t.Fatalf("ConnectionNum after over-limit connect = %d, want still 1", n)
	}
}
