package httpmsg

import (
	"bytes"
	"fmt"
)

// Part is one section of a multipart/form-data body (spec.md §4.C). A part
// is a file part when Filename is non-empty; otherwise it is a plain form
// field and Data holds its raw value.
type Part struct {
	Name     string
	Filename string
	Header   Header
	Data     []byte
}

// IsFile reports whether this part carries an uploaded file rather than a
// plain form field.
func (p Part) IsFile() bool { return p.Filename != "" }

// Multipart lazily parses Body as multipart/form-data, caching the result
// on the Request. It returns an error if Content-Type is not
// multipart/form-data, lacks a boundary, or the body is malformed. Safe to
// call more than once; only the first call does any work.
func (r *Request) Multipart() ([]Part, error) {
	if r.multipartDone {
		return r.multipartParts, r.multipartErr
	}
	r.multipartDone = true

	ct := r.Header.Get(headerContentType)
	boundary, err := multipartBoundary(ct)
	if err != nil {
		r.multipartErr = err
		return nil, err
	}

	parts, err := parseMultipartBody(r.Body, boundary)
	r.multipartParts = parts
	r.multipartErr = err
	return parts, err
}

func multipartBoundary(contentType []byte) ([]byte, error) {
	if contentType == nil {
		return nil, fmt.Errorf("httpmsg: not a multipart request")
	}
	const prefix = "multipart/form-data"
	ct := string(contentType)
	if len(ct) < len(prefix) || !bytesEqualCaseInsensitive([]byte(ct[:len(prefix)]), []byte(prefix)) {
		return nil, fmt.Errorf("httpmsg: not a multipart request")
	}
	idx := bytes.Index(contentType, []byte("boundary="))
	if idx == -1 {
		return nil, fmt.Errorf("httpmsg: multipart content-type missing boundary")
	}
	b := contentType[idx+len("boundary="):]
	if semi := bytes.IndexByte(b, ';'); semi != -1 {
		b = b[:semi]
	}
	b = bytes.Trim(b, `" `)
	if len(b) == 0 {
		return nil, fmt.Errorf("httpmsg: multipart content-type empty boundary")
	}
	return b, nil
}

func parseMultipartBody(body, boundary []byte) ([]Part, error) {
	delim := append([]byte("--"), boundary...)

	var parts []Part
	pos := 0

	start := bytes.Index(body[pos:], delim)
	if start == -1 {
		return nil, fmt.Errorf("httpmsg: multipart body missing opening boundary")
	}
	pos += start + len(delim)

	for {
		if bytes.HasPrefix(body[pos:], []byte("--")) {
			return parts, nil
		}
		if !bytes.HasPrefix(body[pos:], crlfBytes) {
			return nil, fmt.Errorf("httpmsg: multipart malformed boundary line")
		}
		pos += 2

		headerEnd := bytes.Index(body[pos:], []byte("\r\n\r\n"))
		if headerEnd == -1 {
			return nil, fmt.Errorf("httpmsg: multipart part missing header terminator")
		}
		headerBlock := body[pos : pos+headerEnd+2]
		pos += headerEnd + 4

		var part Part
		if err := parseHeaderLines(&part.Header, headerBlock); err != nil {
			return nil, err
		}
		part.Name, part.Filename = parseContentDisposition(part.Header.Get(headerContentDisposition))

		next := bytes.Index(body[pos:], delim)
		if next == -1 {
			return nil, fmt.Errorf("httpmsg: multipart part missing closing boundary")
		}
		data := body[pos : pos+next]
		data = bytes.TrimSuffix(data, crlfBytes)
		part.Data = data
		parts = append(parts, part)

		pos += next + len(delim)
	}
}

func parseContentDisposition(v []byte) (name, filename string) {
	if v == nil {
		return "", ""
	}
	fields := bytes.Split(v, []byte(";"))
	for _, f := range fields[1:] {
		f = bytes.TrimSpace(f)
		if bytes.HasPrefix(f, []byte("name=")) {
			name = string(bytes.Trim(f[len("name="):], `"`))
		} else if bytes.HasPrefix(f, []byte("filename=")) {
			filename = string(bytes.Trim(f[len("filename="):], `"`))
		}
	}
	return name, filename
}
