// Package static resolves a request path against a location's root/alias
// and serves static files, directory listings, uploads, and deletions
// (spec.md §4.E, §9 "default document").
package static

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/valyala/bytebufferpool"
	"github.com/yourusername/webserv/internal/config"
)

// Result is what the static handler produced, left for the response
// builder to serialize (the static handler never writes to the wire
// directly, matching the Static/Builder component split in spec.md §2).
type Result struct {
	Status      int
	ContentType string
	Body        []byte
	// Location is set for a 201 Created upload response.
	Location string
}

// errForbidden/errNotFound carry the 403/404 status that StatusOf hands
// the engine for its error page.
var (
	errForbidden = &staticError{status: 403}
	errNotFound  = &staticError{status: 404}
)

type staticError struct{ status int }

func (e *staticError) Error() string { return "static: error" }

// StatusOf extracts the HTTP status a staticError carries, or 0 if err is
// not one.
func StatusOf(err error) int {
	if se, ok := err.(*staticError); ok {
		return se.status
	}
	return 0
}

// Resolve maps a request path to a filesystem path per the location's
// root or alias directive (spec.md §3: "never both"). path must already
// be validated by the parser (no NUL/control bytes, no ".." segments
// pre-decode); Resolve percent-decodes it and re-checks for ".." segments
// introduced by decoding, since percent-decoding is explicitly this
// layer's concern (spec.md §4.C).
func Resolve(loc *config.LocationConfig, reqPath string) (string, error) {
	decoded, err := url.PathUnescape(reqPath)
	if err != nil {
		return "", errForbidden
	}
	if containsDotDotSegment(decoded) {
		return "", errForbidden
	}

	var base, rest string
	if loc.UsesAlias() {
		base = loc.Alias
		rest = strings.TrimPrefix(decoded, loc.Prefix)
	} else {
		base = loc.Root
		rest = decoded
	}

	joined := filepath.Join(base, filepath.FromSlash(rest))
	// filepath.Join already cleans ".." segments against base, but the
	// explicit check above gives a deterministic 403 instead of letting
	// Join silently clamp to root's parent.
	return joined, nil
}

func containsDotDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// Serve dispatches a GET/POST/DELETE against the resolved filesystem
// path. GET serves the file, or an index document / autoindex listing
// for a directory (spec.md §9 "default document"). POST writes the
// request body to the resolved path, creating it if absent (the 42
// original's webserv test suite treats POST-to-static as a simple
// upload). DELETE removes the resolved file.
func Serve(loc *config.LocationConfig, method, reqPath string, body []byte) (Result, error) {
	fsPath, err := Resolve(loc, reqPath)
	if err != nil {
		return Result{}, err
	}

	switch method {
	case "GET":
		return serveGET(loc, fsPath, reqPath)
	case "POST":
		return servePOST(fsPath, body)
	case "DELETE":
		return serveDELETE(fsPath)
	default:
		return Result{}, errForbidden
	}
}

func serveGET(loc *config.LocationConfig, fsPath, reqPath string) (Result, error) {
	info, err := os.Stat(fsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, errNotFound
		}
		return Result{}, errForbidden
	}

	if info.IsDir() {
		return serveDirectory(loc, fsPath, reqPath)
	}

	return serveFile(fsPath, info.Size())
}

func serveDirectory(loc *config.LocationConfig, fsPath, reqPath string) (Result, error) {
	for _, idx := range loc.IndexFiles {
		candidate := filepath.Join(fsPath, idx)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return serveFile(candidate, info.Size())
		}
	}
	if loc.Autoindex {
		return autoindex(fsPath, reqPath)
	}
	return Result{}, errForbidden
}

func serveFile(fsPath string, size int64) (Result, error) {
	f, err := os.Open(fsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, errNotFound
		}
		return Result{}, errForbidden
	}
	defer f.Close()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.Reset()

	if _, err := io.CopyBuffer(buf, f, make([]byte, 32*1024)); err != nil {
		return Result{}, errForbidden
	}

	body := make([]byte, buf.Len())
	copy(body, buf.B)

	return Result{
		Status:      200,
		ContentType: contentTypeFor(fsPath),
		Body:        body,
	}, nil
}

func servePOST(fsPath string, body []byte) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(fsPath), 0o755); err != nil {
		return Result{}, errForbidden
	}
	existed := false
	if _, err := os.Stat(fsPath); err == nil {
		existed = true
	}
	if err := os.WriteFile(fsPath, body, 0o644); err != nil {
		return Result{}, errForbidden
	}
	status := 201
	if existed {
		status = 200
	}
	return Result{Status: status, ContentType: "text/plain; charset=utf-8"}, nil
}

func serveDELETE(fsPath string) (Result, error) {
	if err := os.Remove(fsPath); err != nil {
		if os.IsNotExist(err) {
			return Result{}, errNotFound
		}
		return Result{}, errForbidden
	}
	return Result{Status: 204}, nil
}

func autoindex(fsPath, reqPath string) (Result, error) {
	entries, err := os.ReadDir(fsPath)
	if err != nil {
		return Result{}, errForbidden
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var sb strings.Builder
	sb.WriteString("<html><head><title>Index of ")
	sb.WriteString(reqPath)
	sb.WriteString("</title></head><body>\n<h1>Index of ")
	sb.WriteString(reqPath)
	sb.WriteString("</h1>\n<ul>\n")
	if reqPath != "/" {
		sb.WriteString(`<li><a href="../">../</a></li>` + "\n")
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		sb.WriteString(`<li><a href="`)
		sb.WriteString(name)
		sb.WriteString(`">`)
		sb.WriteString(name)
		sb.WriteString("</a></li>\n")
	}
	sb.WriteString("</ul>\n</body></html>\n")

	return Result{
		Status:      200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(sb.String()),
	}, nil
}

var extensionContentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json",
	".txt":  "text/plain; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
}

func contentTypeFor(fsPath string) string {
	ext := strings.ToLower(filepath.Ext(fsPath))
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
