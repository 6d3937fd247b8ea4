package cgi

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedOutput is returned when the CGI header block cannot be
// parsed (spec.md §4.F failure mode: 502).
var ErrMalformedOutput = errors.New("cgi: malformed output header block")

// Output is a parsed CGI response, ready for the Response Builder.
type Output struct {
	Status      int
	ContentType string
	Headers     map[string]string
	Body        []byte
}

var headerTerminator = []byte("\r\n\r\n")
var headerTerminatorLF = []byte("\n\n")

// ParseOutput splits the child's raw stdout into a CGI header block and
// body (spec.md §4.F "Output parsing"). If no header terminator is found,
// the entire output is treated as the body with Content-Type: text/html.
func ParseOutput(raw []byte) (Output, error) {
	out := Output{Status: 200, ContentType: "text/html", Headers: map[string]string{}}

	headerEnd, bodyStart := findTerminator(raw)
	if headerEnd < 0 {
		out.Body = raw
		return out, nil
	}

	headerBlock := raw[:headerEnd]
	out.Body = raw[bodyStart:]

	for _, line := range splitLines(headerBlock) {
		if len(line) == 0 {
			continue
		}
		name, value, ok := splitHeaderLine(line)
		if !ok {
			return Output{}, ErrMalformedOutput
		}
		switch strings.ToLower(name) {
		case "status":
			code, ok := parseStatusValue(value)
			if !ok {
				return Output{}, ErrMalformedOutput
			}
			out.Status = code
		case "content-type":
			out.ContentType = value
		default:
			out.Headers[name] = value
		}
	}

	return out, nil
}

func findTerminator(raw []byte) (headerEnd, bodyStart int) {
	if i := bytes.Index(raw, headerTerminator); i >= 0 {
		return i, i + len(headerTerminator)
	}
	if i := bytes.Index(raw, headerTerminatorLF); i >= 0 {
		return i, i + len(headerTerminatorLF)
	}
	return -1, -1
}

func splitLines(block []byte) [][]byte {
	normalized := bytes.ReplaceAll(block, []byte("\r\n"), []byte("\n"))
	return bytes.Split(normalized, []byte("\n"))
}

func splitHeaderLine(line []byte) (name, value string, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(string(line[:idx]))
	value = strings.TrimSpace(string(line[idx+1:]))
	if name == "" {
		return "", "", false
	}
	return name, value, true
}

// parseStatusValue accepts "200" or "200 OK" (spec.md §4.F: "Status: NNN
// [reason]").
func parseStatusValue(v string) (int, bool) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil || code < 100 || code > 599 {
		return 0, false
	}
	return code, true
}
