package httpmsg

import "testing"

// TestParse_SimpleGET parses a minimal GET with no body.
func TestParse_SimpleGET(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req := newRequest()

	n, err := Parse([]byte(raw), DefaultLimits(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if req.Method() != "GET" {
		t.Errorf("method = %q, want GET", req.Method())
	}
	if req.Path() != "/index.html" {
		t.Errorf("path = %q, want /index.html", req.Path())
	}
	if !req.Persistent() {
		t.Errorf("expected keep-alive by default on HTTP/1.1")
	}
}

// TestParse_NeedMoreHeaders reports NeedMore when the header terminator
// has not arrived yet.
func TestParse_NeedMoreHeaders(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: example.com\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	if err != ErrNeedMore {
		t.Fatalf("err = %v, want ErrNeedMore", err)
	}
}

// TestParse_NeedMoreBody reports NeedMore while Content-Length bytes are
// still arriving.
func TestParse_NeedMoreBody(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: x\r\nContent-Length: 10\r\n\r\nhello"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	if err != ErrNeedMore {
		t.Fatalf("err = %v, want ErrNeedMore", err)
	}
}

// TestParse_CompletePOSTWithBody parses a POST once the full body arrives.
func TestParse_CompletePOSTWithBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	req := newRequest()

	n, err := Parse([]byte(raw), DefaultLimits(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if string(req.Body) != "hello" {
		t.Errorf("body = %q, want hello", req.Body)
	}
}

// TestParse_MissingHostHeader rejects a request with no Host header.
func TestParse_MissingHostHeader(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	kind, ok := AsKind(err)
	if !ok || kind != KindMissingHostHeader {
		t.Fatalf("err = %v, want KindMissingHostHeader", err)
	}
}

// TestParse_DuplicateHostHeader rejects more than one Host header.
func TestParse_DuplicateHostHeader(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: a\r\nHost: b\r\n\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	kind, ok := AsKind(err)
	if !ok || kind != KindInvalidHeader {
		t.Fatalf("err = %v, want KindInvalidHeader", err)
	}
}

// TestParse_ConflictingContentLengthAndChunked rejects a request declaring
// both Content-Length and Transfer-Encoding: chunked.
func TestParse_ConflictingContentLengthAndChunked(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\nhello"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	kind, ok := AsKind(err)
	if !ok || kind != KindConflictingHeader {
		t.Fatalf("err = %v, want KindConflictingHeader", err)
	}
}

// TestParse_LengthRequired rejects a bodied POST with neither
// Content-Length nor chunked transfer encoding.
func TestParse_LengthRequired(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: x\r\n\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	kind, ok := AsKind(err)
	if !ok || kind != KindLengthRequired {
		t.Fatalf("err = %v, want KindLengthRequired", err)
	}
}

// TestParse_URITooLong rejects a request-target over the configured limit.
func TestParse_URITooLong(t *testing.T) {
	long := make([]byte, MaxURILength+1)
	for i := range long {
		long[i] = 'a'
	}
	raw := "GET /" + string(long) + " HTTP/1.1\r\nHost: x\r\n\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	kind, ok := AsKind(err)
	if !ok || kind != KindURITooLong {
		t.Fatalf("err = %v, want KindURITooLong", err)
	}
}

// TestParse_PathTraversalRejected rejects a ".." path segment.
func TestParse_PathTraversalRejected(t *testing.T) {
	raw := "GET /../etc/passwd HTTP/1.1\r\nHost: x\r\n\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	kind, ok := AsKind(err)
	if !ok || kind != KindInvalidURI {
		t.Fatalf("err = %v, want KindInvalidURI", err)
	}
}

// TestParse_UnsupportedMethod rejects a recognized HTTP method this server
// never dispatches, distinct from an unrecognized token.
func TestParse_UnsupportedMethod(t *testing.T) {
	raw := "PUT /x HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	kind, ok := AsKind(err)
	if !ok || kind != KindUnsupportedMethod {
		t.Fatalf("err = %v, want KindUnsupportedMethod", err)
	}
}

// TestParse_MalformedMethodToken rejects a token that is not a valid HTTP
// method at all.
func TestParse_MalformedMethodToken(t *testing.T) {
	raw := "FROB / HTTP/1.1\r\nHost: x\r\n\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	kind, ok := AsKind(err)
	if !ok || kind != KindMalformedRequestLine {
		t.Fatalf("err = %v, want KindMalformedRequestLine", err)
	}
}

// TestParse_ConnectionCloseHonored marks the connection for closure when
// the client sends Connection: close.
func TestParse_ConnectionCloseHonored(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Persistent() {
		t.Errorf("expected connection to be marked for close")
	}
}

// TestParse_ChunkedBody decodes a chunked POST body in one shot once the
// terminating chunk has fully arrived.
func TestParse_ChunkedBody(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	req := newRequest()

	n, err := Parse([]byte(raw), DefaultLimits(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if string(req.Body) != "Wikipedia" {
		t.Errorf("body = %q, want Wikipedia", req.Body)
	}
}

// TestParse_ChunkedNeedsMore reports NeedMore mid-stream, before the
// terminating zero-size chunk arrives.
func TestParse_ChunkedNeedsMore(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	if err != ErrNeedMore {
		t.Fatalf("err = %v, want ErrNeedMore", err)
	}
}

// TestParse_PayloadTooLarge rejects a Content-Length beyond MaxBodySize
// without waiting for the body bytes to arrive.
func TestParse_PayloadTooLarge(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: x\r\nContent-Length: 999999999\r\n\r\n"
	req := newRequest()
	lim := Limits{MaxRequestSize: DefaultMaxRequestSize, MaxBodySize: 1024}

	_, err := Parse([]byte(raw), lim, req)
	kind, ok := AsKind(err)
	if !ok || kind != KindPayloadTooLarge {
		t.Fatalf("err = %v, want KindPayloadTooLarge", err)
	}
}

// TestParse_QueryString splits the path from the query string without
// percent-decoding either.
func TestParse_QueryString(t *testing.T) {
	raw := "GET /search?q=go%20lang HTTP/1.1\r\nHost: x\r\n\r\n"
	req := newRequest()

	_, err := Parse([]byte(raw), DefaultLimits(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Path() != "/search" {
		t.Errorf("path = %q, want /search", req.Path())
	}
	if req.RawQuery() != "q=go%20lang" {
		t.Errorf("query = %q, want q=go%%20lang", req.RawQuery())
	}
}

// TestParse_ReusesRequestAcrossCalls confirms a pooled Request is cleanly
// reset between two back-to-back parses on the same struct, matching the
// engine's keep-alive reuse pattern.
func TestParse_ReusesRequestAcrossCalls(t *testing.T) {
	req := newRequest()

	first := "POST /a HTTP/1.1\r\nHost: x\r\nContent-Length: 3\r\n\r\nabc"
	if _, err := Parse([]byte(first), DefaultLimits(), req); err != nil {
		t.Fatalf("first parse: unexpected error: %v", err)
	}

	second := "GET /b HTTP/1.1\r\nHost: x\r\n\r\n"
	if _, err := Parse([]byte(second), DefaultLimits(), req); err != nil {
		t.Fatalf("second parse: unexpected error: %v", err)
	}
	if req.Body != nil {
		t.Errorf("body leaked across reset: %q", req.Body)
	}
	if req.Path() != "/b" {
		t.Errorf("path = %q, want /b", req.Path())
	}
}
