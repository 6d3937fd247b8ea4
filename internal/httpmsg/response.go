package httpmsg

import (
	"strconv"
	"time"
)

// rfc7231DateFormat is the HTTP-date format required for the Date header
// (RFC 7231 §7.1.1.1), identical to net/http.TimeFormat.
const rfc7231DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Response is a server-produced HTTP/1.1 response (spec.md §4.G). Callers
// typically build one through ResponseWriter rather than populating it by
// hand.
type Response struct {
	StatusCode int
	Header     Header
	Body       []byte
	Conn       ConnDisposition
}

func newResponse() *Response {
	return &Response{StatusCode: 200, Conn: KeepAlive}
}

func (r *Response) reset() {
	r.StatusCode = 200
	r.Header.Reset()
	r.Body = nil
	r.Conn = KeepAlive
}

// ResponseWriter accumulates a status line, headers, and body into a
// reusable scratch buffer, then serializes the whole response in one shot
// via Bytes. This mirrors the teacher's buffered response builder, adapted
// to emit a Connection header that reflects the negotiated disposition
// rather than always keep-alive.
type ResponseWriter struct {
	resp        Response
	buf         []byte
	wroteHeader bool
	serverName  string
}

// NewResponseWriter returns a ResponseWriter that stamps the Server header
// with name on every response (spec.md §4.G: "Server always emits ...
// Server").
func NewResponseWriter(serverName string) *ResponseWriter {
	return &ResponseWriter{serverName: serverName}
}

// Reset prepares w for a new response, given the negotiated connection
// disposition for this exchange.
func (w *ResponseWriter) Reset(conn ConnDisposition) {
	w.resp.reset()
	w.resp.Conn = conn
	w.buf = w.buf[:0]
	w.wroteHeader = false
}

// Header returns the header multimap to populate before calling
// WriteHeader. Setting Content-Length or Connection here is overridden by
// Bytes, which computes both authoritatively.
func (w *ResponseWriter) Header() *Header { return &w.resp.Header }

// WriteHeader fixes the status code. Calling it twice is a programming
// error (each Response belongs to exactly one request per spec.md §4.D
// rule 5: no response is produced twice for the same parse).
func (w *ResponseWriter) WriteHeader(code int) error {
	if w.wroteHeader {
		return ErrHeadersAlreadyWritten
	}
	w.resp.StatusCode = code
	w.wroteHeader = true
	return nil
}

// Write appends to the response body. Implicitly calls WriteHeader(200) if
// not already called, matching net/http.ResponseWriter's convention.
func (w *ResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		if err := w.WriteHeader(200); err != nil {
			return 0, err
		}
	}
	w.resp.Body = append(w.resp.Body, p...)
	return len(p), nil
}

// Bytes serializes the accumulated status line, headers, and body into one
// contiguous buffer suitable for handing straight to the connection's
// write queue (spec.md §4.G). It stamps Date, Server, Content-Length, and
// Connection itself; any of these set manually via Header() are replaced.
func (w *ResponseWriter) Bytes(now time.Time) []byte {
	if !w.wroteHeader {
		w.resp.StatusCode = 200
	}
	w.resp.Header.Del(headerContentLength)
	w.resp.Header.Del(headerDate)
	w.resp.Header.Del(headerServer)
	w.resp.Header.Del(headerConnection)

	w.buf = w.buf[:0]
	w.buf = appendStatusLine(w.buf, w.resp.StatusCode)

	w.buf = appendHeaderLine(w.buf, headerDate, []byte(now.UTC().Format(rfc7231DateFormat)))
	w.buf = appendHeaderLine(w.buf, headerServer, []byte(w.serverName))
	w.buf = appendHeaderLine(w.buf, headerContentLength, []byte(strconv.Itoa(len(w.resp.Body))))
	if w.resp.Conn == Close {
		w.buf = appendHeaderLine(w.buf, headerConnection, headerClose)
	} else {
		w.buf = appendHeaderLine(w.buf, headerConnection, headerKeepAlive)
	}

	w.resp.Header.VisitAll(func(name, value []byte) bool {
		w.buf = appendHeaderLine(w.buf, name, value)
		return true
	})

	w.buf = append(w.buf, crlfBytes...)
	w.buf = append(w.buf, w.resp.Body...)
	return w.buf
}

// StatusCode reports the status most recently fixed via WriteHeader, for
// access logging.
func (w *ResponseWriter) StatusCode() int { return w.resp.StatusCode }

// BodyLen reports the response body length so far, for access logging.
func (w *ResponseWriter) BodyLen() int { return len(w.resp.Body) }

// Disposition reports the connection disposition this response was built
// with (the value last passed to Reset), which the engine uses to decide
// whether to close the socket once Bytes has been fully written — this
// can differ from the request's own negotiated disposition, e.g. when the
// caller resets with Close regardless of what the client asked for.
func (w *ResponseWriter) Disposition() ConnDisposition { return w.resp.Conn }

func appendStatusLine(buf []byte, code int) []byte {
	buf = append(buf, http11Bytes...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(code), 10)
	buf = append(buf, ' ')
	buf = append(buf, []byte(StatusText(code))...)
	buf = append(buf, crlfBytes...)
	return buf
}

func appendHeaderLine(buf, name, value []byte) []byte {
	buf = append(buf, name...)
	buf = append(buf, ':', ' ')
	buf = append(buf, value...)
	buf = append(buf, crlfBytes...)
	return buf
}

// StatusText returns the reason phrase for a status code, defaulting to
// "Unknown Status" for anything not in the taxonomy this server produces
// (spec.md §4.C/§4.G).
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 408:
		return "Request Timeout"
	case 411:
		return "Length Required"
	case 413:
		return "Payload Too Large"
	case 414:
		return "URI Too Long"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	case 504:
		return "Gateway Timeout"
	default:
		return "Unknown Status"
	}
}
