package loop

import (
	"net"

	"golang.org/x/sys/unix"
)

// Listen creates a non-blocking TCP or UDP listening socket bound to
// addr and registers it with l, returning its Handle. Grounded on the
// teacher's own createListener-style raw-syscall helpers, adapted from
// net.Conn-returning to fd-returning since this package's Handle model
// drives raw fds directly instead of net.Conn (spec §3/§4.E). Safe to
// call from any goroutine: it hops onto l's own goroutine before
// touching the handle table, the same way Write/Close already do.
func (l *Loop) Listen(network, addr string) (*Handle, error) {
	return l.callOnLoopThread(func() (*Handle, error) {
		switch network {
		case "tcp", "tcp4", "tcp6":
			return l.listenTCP(network, addr)
		case "udp", "udp4", "udp6":
			return l.listenUDP(network, addr)
		default:
			return nil, net.UnknownNetworkError(network)
		}
	})
}

// AdoptListener registers an already-listening fd with l for accept
// distribution across a multi-loop pool (spec §4.F: "on each loop's
// thread ... on the same listen fd"), without creating a new socket.
// The returned Handle doesn't own the fd: closing it deregisters and
// deactivates on l but never calls close(2), since some other Loop
// (the one that actually listened) owns that.
func (l *Loop) AdoptListener(fd int) (*Handle, error) {
	return l.callOnLoopThread(func() (*Handle, error) {
		h := l.Handle(fd)
		h.typ = IOTypeTCPListen
		h.sharedFD = true
		if local, lerr := unix.Getsockname(fd); lerr == nil {
			h.localAddr = local
		}
		return h, nil
	})
}

func (l *Loop) listenTCP(network, addr string) (*Handle, error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return nil, err
	}

	domain := unix.AF_INET
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	sa, err := sockaddrFromTCP(domain, tcpAddr)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	h := l.Handle(fd)
	h.typ = IOTypeTCPListen
	if local, lerr := unix.Getsockname(fd); lerr == nil {
		h.localAddr = local
	}
	return h, nil
}

func (l *Loop) listenUDP(network, addr string) (*Handle, error) {
	udpAddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}

	domain := unix.AF_INET
	if udpAddr.IP != nil && udpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, err
	}

	sa, err := sockaddrFromUDP(domain, udpAddr)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	h := l.Handle(fd)
	h.typ = IOTypeUDP
	if local, lerr := unix.Getsockname(fd); lerr == nil {
		h.localAddr = local
	}
	return h, nil
}

// Dial creates a non-blocking socket and starts an asynchronous connect
// (spec §4.E), returning the Handle immediately; a successful connect
// arrives via the handle's connect callback (with a nil error), while a
// failure closes the handle and arrives via its close callback with
// LastError set. Safe to call from
// any goroutine, like Listen.
func (l *Loop) Dial(network, addr string) (*Handle, error) {
	return l.callOnLoopThread(func() (*Handle, error) {
		switch network {
		case "tcp", "tcp4", "tcp6":
			return l.dialTCP(network, addr)
		case "udp", "udp4", "udp6":
			return l.dialUDP(network, addr)
		default:
			return nil, net.UnknownNetworkError(network)
		}
	})
}

func (l *Loop) dialTCP(network, addr string) (*Handle, error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	domain := unix.AF_INET
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	sa, err := sockaddrFromTCP(domain, tcpAddr)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	h := l.Handle(fd)
	h.typ = IOTypeTCP
	if err := l.Connect(h, sa); err != nil {
		return h, err
	}
	return h, nil
}

func (l *Loop) dialUDP(network, addr string) (*Handle, error) {
	udpAddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	domain := unix.AF_INET
	if udpAddr.IP != nil && udpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	sa, err := sockaddrFromUDP(domain, udpAddr)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	h := l.Handle(fd)
	h.typ = IOTypeUDP
	h.peerAddr = sa
	return h, nil
}

func sockaddrFromTCP(domain int, a *net.TCPAddr) (unix.Sockaddr, error) {
	if domain == unix.AF_INET6 {
		sa := &unix.SockaddrInet6{Port: a.Port}
		if a.IP != nil {
			copy(sa.Addr[:], a.IP.To16())
		}
		return sa, nil
	}
	sa := &unix.SockaddrInet4{Port: a.Port}
	if a.IP != nil {
		copy(sa.Addr[:], a.IP.To4())
	}
	return sa, nil
}

func sockaddrFromUDP(domain int, a *net.UDPAddr) (unix.Sockaddr, error) {
	if domain == unix.AF_INET6 {
		sa := &unix.SockaddrInet6{Port: a.Port}
		if a.IP != nil {
			copy(sa.Addr[:], a.IP.To16())
		}
		return sa, nil
	}
	sa := &unix.SockaddrInet4{Port: a.Port}
	if a.IP != nil {
		copy(sa.Addr[:], a.IP.To4())
	}
	return sa, nil
}
