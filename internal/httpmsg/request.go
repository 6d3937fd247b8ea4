package httpmsg

import "net/url"

// ConnDisposition is the negotiated fate of the TCP connection once this
// request's response has been written (spec.md §3 Request.connection).
type ConnDisposition uint8

const (
	KeepAlive ConnDisposition = iota
	Close
)

// Request is a validated HTTP/1.1 request (spec.md §3). It is immutable
// after Parse returns it. All byte slices reference the Connection's read
// buffer and are valid only until the buffer is reset for the next
// request — see Connection.resetForNextRequest in package engine.
type Request struct {
	MethodID uint8

	methodBytes []byte
	pathBytes   []byte
	queryBytes  []byte

	// Host is the Host header's value (mandatory, exactly one occurrence).
	Host []byte

	Header Header

	// ContentLength is -1 when the request carries no body.
	ContentLength int64

	// Body holds exactly ContentLength bytes, sliced from the connection
	// buffer. nil when ContentLength <= 0 and the request is not chunked.
	Body []byte

	// Chunked is true when Transfer-Encoding: chunked was negotiated and
	// Body already holds the fully decoded payload (the incremental
	// chunk decoder in chunked.go ran before Parse returned).
	Chunked bool

	Conn ConnDisposition

	// multipartParts is filled lazily by Multipart() on first access.
	multipartParts []Part
	multipartErr   error
	multipartDone  bool
}

// Method returns the HTTP method as a string.
func (r *Request) Method() string { return MethodString(r.MethodID) }

// Path returns the request-target's path component (before '?'), not
// percent-decoded — percent-decoding is the location handler's concern
// per spec.md §4.C.
func (r *Request) Path() string { return string(r.pathBytes) }

// PathBytes is the zero-copy form of Path.
func (r *Request) PathBytes() []byte { return r.pathBytes }

// RawQuery returns the query string without the leading '?', or "".
func (r *Request) RawQuery() string { return string(r.queryBytes) }

// Query parses the raw query string into url.Values. Allocates; callers on
// a hot path should prefer RawQuery/QueryBytes when only existence matters.
func (r *Request) Query() (url.Values, error) {
	return url.ParseQuery(string(r.queryBytes))
}

// HostString returns the Host header as a string.
func (r *Request) HostString() string { return string(r.Host) }

// Persistent reports whether the connection should be reused after this
// request's response is written.
func (r *Request) Persistent() bool { return r.Conn == KeepAlive }

func newRequest() *Request {
	return &Request{ContentLength: -1}
}

func (r *Request) reset() {
	r.MethodID = MethodUnknown
	r.methodBytes = nil
	r.pathBytes = nil
	r.queryBytes = nil
	r.Host = nil
	r.Header.Reset()
	r.ContentLength = -1
	r.Body = nil
	r.Chunked = false
	r.Conn = KeepAlive
	r.multipartParts = nil
	r.multipartErr = nil
	r.multipartDone = false
}
