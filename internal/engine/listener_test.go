//go:build linux

package engine

import (
	"net"
	"syscall"
	"testing"
)

// TestNewListener_AcceptsConnection exercises the raw socket/bind/listen
// path end to end against a real loopback connection.
func TestNewListener_AcceptsConnection(t *testing.T) {
	l, err := newListener("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("newListener: %v", err)
	}
	defer l.close()

	sa, err := syscall.Getsockname(l.fd)
	if err != nil {
		t.Fatalf("Getsockname: %v", err)
	}
	addr, ok := sa.(*syscall.SockaddrInet4)
	if !ok {
		t.Fatalf("sockaddr = %T, want SockaddrInet4", sa)
	}

	dialed := make(chan error, 1)
	go func() {
		conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(addr.Port)))
		if err == nil {
			conn.Close()
		}
		dialed <- err
	}()

	fds, err := acceptWithRetry(t, l)
	if err != nil {
		t.Fatalf("acceptAll: %v", err)
	}
	if err := <-dialed; err != nil {
		t.Fatalf("dial: %v", err)
	}
	if len(fds) != 1 {
		t.Fatalf("accepted %d connections, want 1", len(fds))
	}
	syscall.Close(fds[0])
}

// acceptWithRetry polls acceptAll since the listener is non-blocking and
// the dialing goroutine races it.
func acceptWithRetry(t *testing.T, l *listener) ([]int, error) {
	t.Helper()
	for i := 0; i < 200; i++ {
		fds, err := l.acceptAll()
		if err != nil {
			return nil, err
		}
		if len(fds) > 0 {
			return fds, nil
		}
	}
	return nil, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
