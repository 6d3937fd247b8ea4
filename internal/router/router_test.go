package router

import (
	"testing"

	"github.com/yourusername/webserv/internal/config"
	"github.com/yourusername/webserv/internal/httpmsg"
)

func testEndpoint(t *testing.T) *config.ListenEndpoint {
	t.Helper()
	cfg, err := config.Parse(`
server {
    listen 8080;
    server_name example.com;
    root ./www;
    client_max_body_size 100;

    location / {
        allow_methods GET POST;
    }

    location /api {
        allow_methods GET;
    }

    location /redirect-me {
        return 301 /new-place;
    }
}
`)
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	return cfg.Endpoints[0]
}

func parseRequest(t *testing.T, raw string) *httpmsg.Request {
	t.Helper()
	req := httpmsg.AcquireRequest()
	if _, err := httpmsg.Parse([]byte(raw), httpmsg.DefaultLimits(), req); err != nil {
		t.Fatalf("httpmsg.Parse: %v", err)
	}
	return req
}

// TestRoute_LongestPrefixWins selects /api over / for a request under /api.
func TestRoute_LongestPrefixWins(t *testing.T) {
	ep := testEndpoint(t)
	req := parseRequest(t, "GET /api/users HTTP/1.1\r\nHost: example.com\r\n\r\n")

	d, err := Route(ep, req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Location.Prefix != "/api" {
		t.Errorf("Prefix = %q, want /api", d.Location.Prefix)
	}
}

// TestRoute_MethodNotAllowed returns a 405 with the Allow header value.
func TestRoute_MethodNotAllowed(t *testing.T) {
	ep := testEndpoint(t)
	req := parseRequest(t, "DELETE /api HTTP/1.1\r\nHost: example.com\r\n\r\n")

	_, err := Route(ep, req)
	rerr, ok := err.(*Error)
	if !ok || rerr.Kind != KindMethodNotAllowed {
		t.Fatalf("err = %v, want KindMethodNotAllowed", err)
	}
	if rerr.Allow != "GET" {
		t.Errorf("Allow = %q, want GET", rerr.Allow)
	}
}

// TestRoute_PayloadTooLargeRecheckedPerServer confirms the router
// re-validates Content-Length against the matched server's own limit
// (spec.md §4.D rule 2), distinct from the parser's endpoint-wide probe.
func TestRoute_PayloadTooLargeRecheckedPerServer(t *testing.T) {
	ep := testEndpoint(t)
	req := parseRequest(t, "POST / HTTP/1.1\r\nHost: example.com\r\nContent-Length: 200\r\n\r\n"+
		stringOfLen(200))

	_, err := Route(ep, req)
	rerr, ok := err.(*Error)
	if !ok || rerr.Kind != KindPayloadTooLarge {
		t.Fatalf("err = %v, want KindPayloadTooLarge", err)
	}
}

// TestRoute_RedirectLocation surfaces a Decision the caller recognizes as
// a pure redirect rather than dispatching to static/CGI.
func TestRoute_RedirectLocation(t *testing.T) {
	ep := testEndpoint(t)
	req := parseRequest(t, "GET /redirect-me HTTP/1.1\r\nHost: example.com\r\n\r\n")

	d, err := Route(ep, req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !d.IsRedirect() {
		t.Fatalf("expected a redirect decision")
	}
	if d.Location.Redirect.Status != 301 || d.Location.Redirect.Target != "/new-place" {
		t.Errorf("redirect = %+v", d.Location.Redirect)
	}
}

// TestRoute_DefaultServerFallback falls back to the default server when
// Host matches no server_name.
func TestRoute_DefaultServerFallback(t *testing.T) {
	cfg, err := config.Parse(`
server {
    listen 80;
    server_name known.com;
    root ./known;
    location / { allow_methods GET; }
}
server {
    listen 80;
    root ./default;
    location / { allow_methods GET; }
}
`)
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	ep := cfg.Endpoints[0]
	req := parseRequest(t, "GET / HTTP/1.1\r\nHost: unknown.example\r\n\r\n")

	d, err := Route(ep, req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Server.Root != "./default" {
		t.Errorf("Server.Root = %q, want ./default", d.Server.Root)
	}
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
