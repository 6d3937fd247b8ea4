package engine

import (
	"fmt"
	"net"
	"syscall"

	"github.com/yourusername/webserv/internal/socket"
)

// listener is a non-blocking raw listening socket, one per distinct
// (address, port) pair (spec.md §9: one socket per endpoint, virtual
// hosts dispatched by Host after accept).
type listener struct {
	fd   int
	addr string
	port int
}

// newListener creates, binds, and listens on addr:port using raw
// syscalls rather than net.Listen, since the accepted connection fds
// must be registered directly with the reactor's epoll instance — there
// is no way to extract a non-blocking raw fd from net.Listener without
// an extra dup() through (*net.TCPListener).File(), which also flips the
// original fd back to blocking mode.
func newListener(addr string, port int) (*listener, error) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM|syscall.SOCK_NONBLOCK, syscall.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("engine: socket: %w", err)
	}

	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("engine: setsockopt SO_REUSEADDR: %w", err)
	}

	ip := net.ParseIP(addr)
	if addr == "" || addr == "*" {
		ip = net.IPv4zero
	}
	if ip == nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("engine: invalid listen address %q", addr)
	}

	sa := &syscall.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip.To4())

	if err := syscall.Bind(fd, sa); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("engine: bind %s:%d: %w", addr, port, err)
	}
	if err := syscall.Listen(fd, syscall.SOMAXCONN); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("engine: listen %s:%d: %w", addr, port, err)
	}

	if err := socket.ApplyListenerFD(fd, socket.DefaultConfig()); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("engine: tune listener: %w", err)
	}

	return &listener{fd: fd, addr: addr, port: port}, nil
}

// acceptAll drains every pending connection until EAGAIN (spec.md §4.H
// step 2: "accept-loop-until-EAGAIN"), applying per-connection socket
// tuning and returning the accepted, already-nonblocking fds.
func (l *listener) acceptAll() ([]int, error) {
	var fds []int
	for {
		fd, _, err := syscall.Accept4(l.fd, syscall.SOCK_NONBLOCK)
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				return fds, nil
			}
			if err == syscall.EINTR {
				continue
			}
			return fds, err
		}
		_ = socket.ApplyFD(fd, socket.DefaultConfig())
		fds = append(fds, fd)
	}
}

func (l *listener) close() error {
	return syscall.Close(l.fd)
}
