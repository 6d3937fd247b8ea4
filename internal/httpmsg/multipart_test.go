package httpmsg

import "testing"

// TestMultipart_FieldAndFile parses one plain field and one file part from
// a minimal multipart/form-data body.
func TestMultipart_FieldAndFile(t *testing.T) {
	boundary := "----boundary"
	body := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"title\"\r\n\r\n" +
		"hello\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"upload\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"file contents\r\n" +
		"--" + boundary + "--\r\n"

	raw := "POST /upload HTTP/1.1\r\n" +
		"Host: x\r\n" +
		"Content-Type: multipart/form-data; boundary=" + boundary + "\r\n" +
		"Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body

	req := newRequest()
	_, err := Parse([]byte(raw), DefaultLimits(), req)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	parts, err := req.Multipart()
	if err != nil {
		t.Fatalf("Multipart: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}

	if parts[0].Name != "title" || parts[0].IsFile() {
		t.Errorf("parts[0] = %+v, want plain field title", parts[0])
	}
	if string(parts[0].Data) != "hello" {
		t.Errorf("parts[0].Data = %q, want hello", parts[0].Data)
	}

	if parts[1].Name != "upload" || !parts[1].IsFile() || parts[1].Filename != "a.txt" {
		t.Errorf("parts[1] = %+v, want file upload a.txt", parts[1])
	}
	if string(parts[1].Data) != "file contents" {
		t.Errorf("parts[1].Data = %q, want %q", parts[1].Data, "file contents")
	}
}

// TestMultipart_NotMultipartContentType reports an error rather than
// panicking when Content-Type is not multipart/form-data.
func TestMultipart_NotMultipartContentType(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	req := newRequest()
	if _, err := Parse([]byte(raw), DefaultLimits(), req); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if _, err := req.Multipart(); err == nil {
		t.Errorf("expected error for non-multipart Content-Type")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
