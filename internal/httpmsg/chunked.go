package httpmsg

import (
	"bytes"
	"strconv"
)

// tryDecodeChunked scans a chunked-transfer body starting at the first
// chunk-size line. It returns (nil, 0, nil) when body is incomplete so far
// (caller should wait for more bytes), (decoded, consumed, nil) once the
// terminating zero-size chunk and its trailer have both arrived, or a
// non-nil error for a malformed chunk stream.
//
// This runs against whatever has already been read into the connection
// buffer rather than pulling from an io.Reader, so a chunk boundary that
// straddles two reads simply produces another NeedMore on the next Parse
// call with a longer buf (spec.md §9 Design Notes, incremental decoder
// option).
func tryDecodeChunked(body []byte, lim Limits) (decoded []byte, consumed int, err error) {
	var out []byte
	pos := 0
	total := int64(0)

	for {
		lineEnd := bytes.Index(body[pos:], crlfBytes)
		if lineEnd == -1 {
			return nil, 0, nil
		}
		lineEnd += pos
		sizeLine := body[pos:lineEnd]
		if ext := bytes.IndexByte(sizeLine, ';'); ext != -1 {
			sizeLine = sizeLine[:ext]
		}
		size, perr := strconv.ParseInt(string(bytes.TrimSpace(sizeLine)), 16, 64)
		if perr != nil || size < 0 {
			return nil, 0, newParseError(KindInvalidHeader)
		}
		pos = lineEnd + 2

		if size == 0 {
			// Final chunk: a lone CRLF right after "0\r\n" terminates
			// when there are no trailers.
			if len(body) >= pos+2 && bytes.Equal(body[pos:pos+2], crlfBytes) {
				return nonNilBody(out), pos + 2, nil
			}
			// Otherwise consume the trailer section up to the terminating
			// blank line.
			trailerEnd := bytes.Index(body[pos:], []byte("\r\n\r\n"))
			if trailerEnd == -1 {
				return nil, 0, nil
			}
			return nonNilBody(out), pos + trailerEnd + 4, nil
		}

		total += size
		if total > lim.MaxBodySize {
			return nil, 0, newParseError(KindPayloadTooLarge)
		}

		need := pos + int(size) + 2 // chunk data + trailing CRLF
		if len(body) < need {
			return nil, 0, nil
		}
		if !bytes.Equal(body[pos+int(size):need], crlfBytes) {
			return nil, 0, newParseError(KindInvalidHeader)
		}
		out = append(out, body[pos:pos+int(size)]...)
		pos = need
	}
}

func nonNilBody(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
