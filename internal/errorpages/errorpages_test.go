package errorpages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourusername/webserv/internal/config"
)

// TestRender_GeneratedPageWhenNoOverride falls back to a generated HTML
// page when the server configures no error_page for the status.
func TestRender_GeneratedPageWhenNoOverride(t *testing.T) {
	_, body := Render(&config.ServerConfig{}, 404)
	if !strings.Contains(string(body), "404") {
		t.Errorf("body = %q, want it to mention 404", body)
	}
}

// TestRender_ConfiguredOverrideIsServed serves the configured file
// verbatim when present.
func TestRender_ConfiguredOverrideIsServed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "404.html")
	os.WriteFile(path, []byte("custom not found"), 0o644)

	server := &config.ServerConfig{ErrorPages: map[int]string{404: path}}
	_, body := Render(server, 404)
	if string(body) != "custom not found" {
		t.Errorf("body = %q, want custom not found", body)
	}
}

// TestRender_NilServerFallsBackToGenerated handles a request that never
// reached server selection (e.g. parser failure before Host was read).
func TestRender_NilServerFallsBackToGenerated(t *testing.T) {
	_, body := Render(nil, 400)
	if !strings.Contains(string(body), "400") {
		t.Errorf("body = %q, want it to mention 400", body)
	}
}
