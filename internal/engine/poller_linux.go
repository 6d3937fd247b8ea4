//go:build linux

package engine

import "syscall"

// poller wraps the raw epoll syscalls, grounded on the pack's
// archutils.EpollCreate1/EpollCtl/EpollWait wrapper but built on
// syscall directly rather than cgo.
type poller struct {
	epfd int
}

func newPoller() (*poller, error) {
	fd, err := syscall.EpollCreate1(syscall.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &poller{epfd: fd}, nil
}

const (
	eventRead  = syscall.EPOLLIN
	eventWrite = syscall.EPOLLOUT
)

func (p *poller) add(fd int, events uint32) error {
	ev := syscall.EpollEvent{Events: events, Fd: int32(fd)}
	return syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_ADD, fd, &ev)
}

func (p *poller) modify(fd int, events uint32) error {
	ev := syscall.EpollEvent{Events: events, Fd: int32(fd)}
	return syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_MOD, fd, &ev)
}

func (p *poller) remove(fd int) error {
	// Linux ignores the event argument on EPOLL_CTL_DEL but some kernels
	// before 2.6.9 required a non-nil pointer; pass one for portability.
	ev := syscall.EpollEvent{}
	return syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_DEL, fd, &ev)
}

// wait blocks until at least one fd is ready or timeoutMillis elapses
// (-1 blocks forever), appending ready (fd, events) pairs to out.
func (p *poller) wait(out []readyFD, timeoutMillis int) ([]readyFD, error) {
	var raw [256]syscall.EpollEvent
	n, err := syscall.EpollWait(p.epfd, raw[:], timeoutMillis)
	if err != nil {
		if err == syscall.EINTR {
			return out[:0], nil
		}
		return out, err
	}
	out = out[:0]
	for i := 0; i < n; i++ {
		out = append(out, readyFD{fd: int(raw[i].Fd), events: raw[i].Events})
	}
	return out, nil
}

func (p *poller) close() error {
	return syscall.Close(p.epfd)
}

type readyFD struct {
	fd     int
	events uint32
}
