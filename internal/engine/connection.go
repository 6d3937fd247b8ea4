package engine

import (
	"time"

	"github.com/yourusername/webserv/internal/cgi"
	"github.com/yourusername/webserv/internal/config"
	"github.com/yourusername/webserv/internal/httpmsg"
)

// phase is a Connection's position in the request/response lifecycle
// (spec.md §3: "Connection.phase"). The reactor uses it to compute the
// interest set each iteration.
type phase uint8

const (
	phaseReading phase = iota
	phaseParsed
	phaseBuilding
	phaseWriting
	phaseDraining
	phaseWaitingOnCGI
)

func (p phase) String() string {
	switch p {
	case phaseReading:
		return "reading"
	case phaseParsed:
		return "parsed"
	case phaseBuilding:
		return "building"
	case phaseWriting:
		return "writing"
	case phaseDraining:
		return "draining"
	case phaseWaitingOnCGI:
		return "waiting_on_cgi"
	default:
		return "unknown"
	}
}

// Connection holds everything the reactor needs to drive one client
// socket through the request/response cycle without blocking (spec.md
// §3). It owns its read/write buffers and its current request/response;
// both are reused across keep-alive requests.
type Connection struct {
	fd int

	peerAddr   string
	listenPort int
	endpoint   *config.ListenEndpoint

	readBuf  []byte
	writeBuf []byte
	// writeOffset is how much of writeBuf has already been drained to
	// the socket (spec.md §3 "bytes_written").
	writeOffset int

	phase phase

	lastActive time.Time
	// reqStart marks when the current request finished parsing, used to
	// compute the duration field in the access log line (SPEC_FULL.md
	// ambient logging section).
	reqStart time.Time

	req  *httpmsg.Request
	resp *httpmsg.ResponseWriter

	keepAlive bool

	// cgiStdout is the read end of the CGI child's stdout pipe once
	// registered with the reactor's epoll instance (spec.md §4.F
	// "preferred design": CGI as additional fds in the loop).
	cgiStdout   int
	cgiOutput   []byte
	cgiProc     *cgiWait
	cgiDeadline time.Time
	pendingCGI  *cgi.Request
	// pendingConsumed is how many read-buffer bytes the just-parsed
	// request occupied; kept until the CGI child (if any) finishes so
	// resetForNextRequest can run once the response is fully written.
	pendingConsumed int
}

func newConnection(fd int, peerAddr string, ep *config.ListenEndpoint, serverName string) *Connection {
	return &Connection{
		fd:         fd,
		peerAddr:   peerAddr,
		listenPort: ep.Port,
		endpoint:   ep,
		readBuf:    make([]byte, 0, 4096),
		phase:      phaseReading,
		lastActive: time.Now(),
		req:        httpmsg.AcquireRequest(),
		resp:       httpmsg.AcquireResponseWriter(serverName),
		keepAlive:  true,
		cgiStdout:  -1,
	}
}

// resetForNextRequest discards the consumed bytes of the last request
// and puts the Connection back in phaseReading, implementing spec.md
// §3's keep-alive reuse without reallocating buffers.
func (c *Connection) resetForNextRequest(consumed int) {
	remaining := len(c.readBuf) - consumed
	if remaining > 0 {
		copy(c.readBuf[:remaining], c.readBuf[consumed:])
	}
	c.readBuf = c.readBuf[:remaining]

	c.writeBuf = c.writeBuf[:0]
	c.writeOffset = 0
	c.phase = phaseReading
	c.lastActive = time.Now()
	c.cgiStdout = -1
	c.cgiOutput = nil
	c.cgiProc = nil
	c.pendingCGI = nil
}

// release returns pooled objects; closing the socket is left to the
// caller. Any CGI child still attached is first sent SIGTERM through
// cgiWait.kill (spec.md §4.H "Cancellation": "a Connection close tears down its owned
// CGI child via the CGI Gateway's kill path").
func (c *Connection) release() {
	if c.cgiProc != nil {
		c.cgiProc.kill()
	}
	httpmsg.ReleaseRequest(c.req)
	httpmsg.ReleaseResponseWriter(c.resp)
}

func (c *Connection) idleFor(now time.Time) time.Duration {
	return now.Sub(c.lastActive)
}
