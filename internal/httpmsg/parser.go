package httpmsg

import "bytes"

// Limits bounds what Parse will accept before the matched server's exact
// client_max_body_size is known. Router re-checks the precise per-server
// limit after host-based server selection (spec.md §4.D rule 2); Limits
// here only needs to be generous enough not to starve a legitimate request
// of NeedMore before the server is known.
type Limits struct {
	// MaxRequestSize bounds headers+body when no header terminator has
	// been found yet (spec.md §4.C probe rule 1).
	MaxRequestSize int64
	// MaxBodySize is the largest client_max_body_size configured across
	// every server on the owning listen endpoint (or DefaultMaxRequestSize
	// if unset). A body larger than this can never be valid on this
	// endpoint, so Parse fails fast instead of waiting for more bytes.
	MaxBodySize int64
}

// DefaultLimits returns the limits to use when no configuration is known
// yet (e.g. a bare connection before any server is resolved).
func DefaultLimits() Limits {
	return Limits{MaxRequestSize: DefaultMaxRequestSize, MaxBodySize: DefaultMaxRequestSize}
}

// Parse attempts to parse one HTTP/1.1 request from the front of buf into
// req, which the caller owns (typically via AcquireRequest). req is reset
// at the start of every call; after a failed Parse it may still hold the
// fields that were parsed before the error was found.
//
// It returns (consumed, nil) when a complete, valid request was parsed —
// the caller must advance its read buffer by exactly consumed bytes. It
// returns (0, ErrNeedMore) when buf might become a valid request with more
// bytes appended. Any other non-nil error is a *ParseError describing a
// terminal validation failure; the caller should build the corresponding
// status response and close or reset the connection without waiting for
// more bytes of this request.
//
// Parse never mutates buf and never blocks; it is safe to call again with
// a larger buf after a non-blocking read appended more bytes.
func Parse(buf []byte, lim Limits, req *Request) (consumed int, err error) {
	req.reset()

	headerIdx := bytes.Index(buf, []byte("\r\n\r\n"))
	if headerIdx == -1 {
		if int64(len(buf)) > lim.MaxRequestSize {
			return 0, newParseError(KindPayloadTooLarge)
		}
		return 0, ErrNeedMore
	}
	headerEnd := headerIdx + 4

	lineEnd := bytes.Index(buf[:headerIdx+2], crlfBytes)
	if lineEnd == -1 {
		return 0, newParseError(KindMalformedRequestLine)
	}
	line := buf[:lineEnd]

	methodBytes, uriBytes, proto, err := splitRequestLine(line)
	if err != nil {
		return 0, err
	}

	if len(uriBytes) > MaxURILength {
		return 0, newParseError(KindURITooLong)
	}

	methodID := ParseMethodID(methodBytes)
	if methodID == MethodUnknown {
		return 0, newParseError(KindMalformedRequestLine)
	}
	if !bytes.Equal(proto, http11Bytes) {
		return 0, newParseError(KindInvalidHTTPVersion)
	}
	if !methodAllowed(methodID) {
		return 0, newParseError(KindUnsupportedMethod)
	}

	path, query, perr := splitURI(uriBytes)
	if perr != nil {
		return 0, perr
	}

	req.MethodID = methodID
	req.methodBytes = methodBytes
	req.pathBytes = path
	req.queryBytes = query

	headerBlock := buf[lineEnd+2 : headerIdx+2] // include the final lone \r\n before the blank line
	if perr := parseHeaderLines(&req.Header, headerBlock); perr != nil {
		return 0, perr
	}

	hostCount := req.Header.Count(headerHost)
	if hostCount == 0 {
		return 0, newParseError(KindMissingHostHeader)
	}
	if hostCount > 1 {
		return 0, newParseError(KindInvalidHeader)
	}
	req.Host = req.Header.Get(headerHost)
	if len(req.Host) == 0 {
		return 0, newParseError(KindMissingHostHeader)
	}

	if connVal := req.Header.Get(headerConnection); connVal != nil {
		if bytesEqualCaseInsensitive(connVal, headerClose) {
			req.Conn = Close
		}
	}

	clCount := req.Header.Count(headerContentLength)
	teVal := req.Header.Get(headerTransferEncoding)
	isChunked := teVal != nil && bytesEqualCaseInsensitive(teVal, headerChunked)

	if clCount > 1 {
		// Differing duplicate Content-Length values is a conflicting
		// header; Header.Values lets us check they all agree.
		vals := req.Header.Values(headerContentLength)
		for _, v := range vals[1:] {
			if v != vals[0] {
				return 0, newParseError(KindConflictingHeader)
			}
		}
	}
	if clCount > 0 && isChunked {
		return 0, newParseError(KindConflictingHeader)
	}

	bodyCarrying := methodID == MethodPOST
	if !bodyCarrying && (clCount > 0 || isChunked) {
		cl, _ := parseContentLength(req.Header.Get(headerContentLength))
		if clCount > 0 && cl > 0 {
			return 0, newParseError(KindMethodBodyMismatch)
		}
		if isChunked {
			return 0, newParseError(KindMethodBodyMismatch)
		}
	}

	if !bodyCarrying {
		req.ContentLength = -1
		return headerEnd, nil
	}

	// Body-bearing method (POST) from here on.
	if isChunked {
		decoded, bodyLen, cerr := tryDecodeChunked(buf[headerEnd:], lim)
		if cerr != nil {
			return 0, cerr
		}
		if decoded == nil {
			return 0, ErrNeedMore
		}
		req.Body = decoded
		req.Chunked = true
		req.ContentLength = int64(len(decoded))
		return headerEnd + bodyLen, nil
	}

	if clCount == 0 {
		// No way to know how much body to wait for; validation (not the
		// probe) reports this as 411, per spec.md §4.C rule 3.
		return 0, newParseError(KindLengthRequired)
	}

	cl, clErr := parseContentLength(req.Header.Get(headerContentLength))
	if clErr != nil {
		return 0, newParseError(KindInvalidContentLength)
	}
	if cl > lim.MaxBodySize {
		return 0, newParseError(KindPayloadTooLarge)
	}
	need := headerEnd + int(cl)
	if int64(len(buf)) < int64(need) {
		return 0, ErrNeedMore
	}

	req.ContentLength = cl
	if cl > 0 {
		req.Body = buf[headerEnd:need]
	}
	return need, nil
}

func splitRequestLine(line []byte) (method, uri, proto []byte, err error) {
	if len(line) > MaxRequestLineLength {
		return nil, nil, nil, newParseError(KindURITooLong)
	}
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return nil, nil, nil, newParseError(KindMalformedRequestLine)
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return nil, nil, nil, newParseError(KindMalformedRequestLine)
	}
	method = line[:sp1]
	uri = rest[:sp2]
	proto = rest[sp2+1:]
	if len(proto) == 0 || len(uri) == 0 {
		return nil, nil, nil, newParseError(KindMalformedRequestLine)
	}
	// No leading/trailing space, no double space: IndexByte already
	// guarantees single-space separation since we split at the first
	// occurrence in each remainder.
	return method, uri, proto, nil
}

func splitURI(uri []byte) (path, query []byte, err error) {
	q := bytes.IndexByte(uri, '?')
	if q == -1 {
		path = uri
	} else {
		path = uri[:q]
		query = uri[q+1:]
	}
	if len(path) == 0 || path[0] != '/' {
		return nil, nil, newParseError(KindInvalidURI)
	}
	for _, b := range path {
		if b == 0x00 || (b <= 0x1F) || b == 0x7F {
			return nil, nil, newParseError(KindInvalidURI)
		}
	}
	if hasDotDotSegment(path) {
		return nil, nil, newParseError(KindInvalidURI)
	}
	return path, query, nil
}

func hasDotDotSegment(path []byte) bool {
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			seg := path[start:i]
			if len(seg) == 2 && seg[0] == '.' && seg[1] == '.' {
				return true
			}
			start = i + 1
		}
	}
	return false
}

// parseHeaderLines parses a CRLF-terminated header block (without the
// final blank-line CRLF, but with a trailing CRLF after the last header)
// into h. Shared by the request parser and the multipart part parser.
func parseHeaderLines(h *Header, block []byte) error {
	pos := 0
	count := 0
	for pos < len(block) {
		lineEnd := bytes.Index(block[pos:], crlfBytes)
		if lineEnd == -1 {
			return newParseError(KindInvalidHeader)
		}
		lineEnd += pos
		line := block[pos:lineEnd]
		pos = lineEnd + 2

		if len(line) == 0 {
			continue
		}
		count++
		if count > MaxHeaderCount {
			return newParseError(KindHeaderTooLarge)
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return newParseError(KindInvalidHeader)
		}
		name := line[:colon]
		if name[len(name)-1] == ' ' || name[len(name)-1] == '\t' {
			return newParseError(KindInvalidHeader)
		}
		for _, b := range name {
			if b == ' ' || b == '\t' {
				return newParseError(KindInvalidHeader)
			}
			if !isTokenChar(b) {
				return newParseError(KindInvalidHeader)
			}
		}
		value := trimOWS(line[colon+1:])

		if len(name) > MaxHeaderNameLength {
			return newParseError(KindHeaderTooLarge)
		}
		if len(value) > MaxHeaderValueLength {
			return newParseError(KindHeaderTooLarge)
		}

		if err := h.Add(name, value); err != nil {
			return err
		}
	}
	return nil
}

func isTokenChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '_', '.', '!', '#', '$', '%', '&', '\'', '*', '+', '^', '`', '|', '~':
		return true
	}
	return false
}

func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

func parseContentLength(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, newParseError(KindInvalidContentLength)
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, newParseError(KindInvalidContentLength)
		}
		n = n*10 + int64(c-'0')
		if n < 0 {
			return 0, newParseError(KindInvalidContentLength)
		}
	}
	return n, nil
}
