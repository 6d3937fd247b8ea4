package engine

import (
	"testing"
	"time"

	"github.com/yourusername/webserv/internal/config"
)

func testEndpointForConn() *config.ListenEndpoint {
	return &config.ListenEndpoint{Address: "127.0.0.1", Port: 8080, Servers: []*config.ServerConfig{{}}}
}

// TestNewConnection_StartsInReadingPhase matches spec.md §3's initial
// Connection state after accept.
func TestNewConnection_StartsInReadingPhase(t *testing.T) {
	c := newConnection(99, "127.0.0.1:1234", testEndpointForConn(), "webserv")
	defer c.release()

	if c.phase != phaseReading {
		t.Errorf("phase = %v, want reading", c.phase)
	}
	if c.cgiStdout != -1 {
		t.Errorf("cgiStdout = %d, want -1 (unset)", c.cgiStdout)
	}
}

// TestResetForNextRequest_RetainsUnconsumedBytes confirms pipelined
// bytes beyond the first request survive a keep-alive reset.
func TestResetForNextRequest_RetainsUnconsumedBytes(t *testing.T) {
	c := newConnection(99, "", testEndpointForConn(), "webserv")
	defer c.release()

	c.readBuf = append(c.readBuf, []byte("GET / HTTP/1.1\r\n\r\nEXTRA")...)
	consumed := len(c.readBuf) - len("EXTRA")

	c.resetForNextRequest(consumed)

	if string(c.readBuf) != "EXTRA" {
		t.Errorf("readBuf = %q, want EXTRA", c.readBuf)
	}
	if c.phase != phaseReading {
		t.Errorf("phase = %v, want reading", c.phase)
	}
}

// TestResetForNextRequest_ClearsCGIState confirms a completed CGI
// round's bookkeeping never leaks into the next request.
func TestResetForNextRequest_ClearsCGIState(t *testing.T) {
	c := newConnection(99, "", testEndpointForConn(), "webserv")
	defer c.release()

	c.cgiStdout = 7
	c.cgiOutput = []byte("stale")
	c.phase = phaseWaitingOnCGI

	c.resetForNextRequest(0)

	if c.cgiStdout != -1 || c.cgiOutput != nil {
		t.Errorf("cgi state not cleared: stdout=%d output=%q", c.cgiStdout, c.cgiOutput)
	}
}

// TestIdleFor reports elapsed time since last activity.
func TestIdleFor(t *testing.T) {
	c := newConnection(99, "", testEndpointForConn(), "webserv")
	defer c.release()

	c.lastActive = time.Now().Add(-5 * time.Second)
	if d := c.idleFor(time.Now()); d < 4*time.Second {
		t.Errorf("idleFor = %v, want >= 4s", d)
	}
}

// TestPhaseString covers the phase enum's display names.
func TestPhaseString(t *testing.T) {
	cases := map[phase]string{
		phaseReading:      "reading",
		phaseParsed:       "parsed",
		phaseBuilding:     "building",
		phaseWriting:      "writing",
		phaseDraining:     "draining",
		phaseWaitingOnCGI: "waiting_on_cgi",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("phase %d: got %q, want %q", p, got, want)
		}
	}
}
