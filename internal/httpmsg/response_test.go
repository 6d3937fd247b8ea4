package httpmsg

import (
	"strings"
	"testing"
	"time"
)

// TestResponseWriter_BasicGET serializes a status line, mandatory headers,
// and a body.
func TestResponseWriter_BasicGET(t *testing.T) {
	w := NewResponseWriter("webserv/1.0")
	w.Reset(KeepAlive)
	w.WriteHeader(200)
	w.Write([]byte("hello"))

	out := string(w.Bytes(time.Unix(0, 0)))

	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("missing status line: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 5\r\n") {
		t.Errorf("missing Content-Length: %q", out)
	}
	if !strings.Contains(out, "Connection: keep-alive\r\n") {
		t.Errorf("missing keep-alive Connection header: %q", out)
	}
	if !strings.Contains(out, "Server: webserv/1.0\r\n") {
		t.Errorf("missing Server header: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nhello") {
		t.Errorf("body not terminated correctly: %q", out)
	}
}

// TestResponseWriter_ConnectionCloseHonored emits Connection: close when
// the caller resets with Close disposition.
func TestResponseWriter_ConnectionCloseHonored(t *testing.T) {
	w := NewResponseWriter("webserv/1.0")
	w.Reset(Close)
	w.WriteHeader(500)

	out := string(w.Bytes(time.Unix(0, 0)))
	if !strings.Contains(out, "Connection: close\r\n") {
		t.Errorf("missing Connection: close: %q", out)
	}
}

// TestResponseWriter_DoubleWriteHeaderFails rejects a second WriteHeader
// call on the same response.
func TestResponseWriter_DoubleWriteHeaderFails(t *testing.T) {
	w := NewResponseWriter("webserv/1.0")
	w.Reset(KeepAlive)
	if err := w.WriteHeader(200); err != nil {
		t.Fatalf("first WriteHeader: %v", err)
	}
	if err := w.WriteHeader(500); err != ErrHeadersAlreadyWritten {
		t.Errorf("err = %v, want ErrHeadersAlreadyWritten", err)
	}
}

// TestResponseWriter_ImplicitOKOnWrite confirms Write without WriteHeader
// defaults to 200, matching net/http.ResponseWriter's convention.
func TestResponseWriter_ImplicitOKOnWrite(t *testing.T) {
	w := NewResponseWriter("webserv/1.0")
	w.Reset(KeepAlive)
	w.Write([]byte("ok"))

	if w.StatusCode() != 200 {
		t.Errorf("StatusCode() = %d, want 200", w.StatusCode())
	}
}

// TestStatusText_KnownAndUnknown covers both a recognized status and the
// fallback reason phrase.
func TestStatusText_KnownAndUnknown(t *testing.T) {
	if got := StatusText(404); got != "Not Found" {
		t.Errorf("StatusText(404) = %q, want Not Found", got)
	}
	if got := StatusText(999); got != "Unknown Status" {
		t.Errorf("StatusText(999) = %q, want Unknown Status", got)
	}
}
