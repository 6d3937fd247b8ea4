//go:build !linux

package engine

import "errors"

// poller stub for non-Linux build targets. The reactor's single-thread,
// readiness-based design (spec.md §4.H) is specified against epoll; a
// select/kqueue-backed poller would live here if this server shipped on
// non-Linux hosts.
type poller struct{}

func newPoller() (*poller, error) {
	return nil, errors.New("engine: epoll reactor requires linux")
}

const (
	eventRead  = uint32(0)
	eventWrite = uint32(0)
)

func (p *poller) add(fd int, events uint32) error      { return errNotSupported }
func (p *poller) modify(fd int, events uint32) error   { return errNotSupported }
func (p *poller) remove(fd int) error                  { return errNotSupported }
func (p *poller) close() error                         { return errNotSupported }
func (p *poller) wait(out []readyFD, ms int) ([]readyFD, error) {
	return out, errNotSupported
}

var errNotSupported = errors.New("engine: not supported on this platform")

type readyFD struct {
	fd     int
	events uint32
}
