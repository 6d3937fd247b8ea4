// Package cgi implements the CGI/1.1 gateway: environment synthesis,
// child process lifecycle, and output re-parsing (spec.md §4.F). The
// original keeps these as three translation units; this package keeps
// that split as env.go, process.go, and output.go rather than folding
// everything into one file.
package cgi

import (
	"strconv"
	"strings"

	"github.com/yourusername/webserv/internal/config"
	"github.com/yourusername/webserv/internal/httpmsg"
)

// Request carries everything the gateway needs from the matched
// request/route to build a CGI/1.1 environment, decoupled from
// httpmsg.Request so this package doesn't need to know about connection
// buffer lifetimes.
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Host          string
	ContentLength int64
	ContentType   string
	Body          []byte
	Headers       *httpmsg.Header

	// ScriptPath is the resolved filesystem path to the CGI script
	// (spec.md §4.F "dispatch to CGI ... if the interpreter is
	// executable").
	ScriptPath string
	// ScriptName is the request-path portion that named the script
	// (used for SCRIPT_NAME/PATH_INFO splitting).
	ScriptName string
	PathInfo   string

	ServerName string
	ServerPort int
}

// BuildEnv synthesizes the CGI/1.1 environment variable set described in
// spec.md §4.F, in the "NAME=value" form os/exec.Cmd.Env expects.
func BuildEnv(req *Request, loc *config.LocationConfig) []string {
	env := make([]string, 0, 16+estimateHeaderCount(req.Headers))

	env = append(env,
		"REQUEST_METHOD="+req.Method,
		"SCRIPT_NAME="+req.ScriptName,
		"SCRIPT_FILENAME="+req.ScriptPath,
		"PATH_INFO="+req.PathInfo,
		"QUERY_STRING="+req.RawQuery,
		"SERVER_PROTOCOL=HTTP/1.1",
		"SERVER_SOFTWARE=webserv",
		"SERVER_NAME="+req.ServerName,
		"SERVER_PORT="+strconv.Itoa(req.ServerPort),
		"GATEWAY_INTERFACE=CGI/1.1",
		"REDIRECT_STATUS=200",
	)

	if req.ContentLength >= 0 {
		env = append(env, "CONTENT_LENGTH="+strconv.FormatInt(req.ContentLength, 10))
	}
	if req.ContentType != "" {
		env = append(env, "CONTENT_TYPE="+req.ContentType)
	}

	if req.Headers != nil {
		req.Headers.VisitAll(func(name, value []byte) bool {
			key := httpEnvName(string(name))
			if key == "HTTP_CONTENT_LENGTH" || key == "HTTP_CONTENT_TYPE" {
				return true
			}
			env = append(env, key+"="+string(value))
			return true
		})
	}

	return env
}

// httpEnvName converts an HTTP header name into its CGI/1.1
// HTTP_<UPPERCASE_UNDERSCORED> environment variable name.
func httpEnvName(header string) string {
	var sb strings.Builder
	sb.WriteString("HTTP_")
	for _, r := range header {
		switch {
		case r == '-':
			sb.WriteByte('_')
		case r >= 'a' && r <= 'z':
			sb.WriteByte(byte(r - 'a' + 'A'))
		default:
			sb.WriteByte(byte(r))
		}
	}
	return sb.String()
}

func estimateHeaderCount(h *httpmsg.Header) int {
	if h == nil {
		return 0
	}
	return h.Len()
}

// ScriptPathInfo splits a request path against a CGI location's prefix,
// returning the script name (prefix-relative script component) and the
// PATH_INFO trailer per CGI/1.1 §4.1 and §4.2. cgiExt identifies where
// the script portion of path ends.
func ScriptPathInfo(reqPath, prefix, cgiExt string) (scriptName, pathInfo string) {
	rest := strings.TrimPrefix(reqPath, prefix)
	idx := strings.Index(rest, cgiExt)
	if idx < 0 {
		return rest, ""
	}
	cut := idx + len(cgiExt)
	scriptName = strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(rest[:cut], "/")
	pathInfo = rest[cut:]
	return scriptName, pathInfo
}
