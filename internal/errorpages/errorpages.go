// Package errorpages renders the body for an error response: a
// configured error_page file if the matched server names one for this
// status, otherwise a generated minimal HTML page (spec.md §7 class 1).
package errorpages

import (
	"fmt"
	"os"

	"github.com/yourusername/webserv/internal/config"
	"github.com/yourusername/webserv/internal/httpmsg"
)

// Render returns the content type and body to use for an error response
// with the given status on behalf of server. server may be nil when no
// server was ever selected (e.g. a parse failure before Host could be
// read) — Render always falls back to the generated page in that case.
func Render(server *config.ServerConfig, status int) (contentType string, body []byte) {
	if server != nil {
		if path, ok := server.ErrorPages[status]; ok {
			if data, err := os.ReadFile(path); err == nil {
				return "text/html; charset=utf-8", data
			}
			// Configured path unreadable: fall through to the generated
			// page rather than failing the whole response.
		}
	}
	return "text/html; charset=utf-8", generate(status)
}

func generate(status int) []byte {
	reason := httpmsg.StatusText(status)
	return []byte(fmt.Sprintf(`<html>
<head><title>%d %s</title></head>
<body>
<center><h1>%d %s</h1></center>
</body>
</html>
`, status, reason, status, reason))
}
