// Package router implements host-based server selection and longest-prefix
// location matching against a parsed request (spec.md §4.D).
package router

import (
	"strings"

	"github.com/yourusername/webserv/internal/config"
	"github.com/yourusername/webserv/internal/httpmsg"
)

// ErrorKind enumerates the ways routing can fail after a request has
// already parsed successfully (spec.md §9: "Split into ParseError,
// ValidationError, RoutingError").
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindPayloadTooLarge
	KindMethodNotAllowed
	KindNotFound
)

// Status maps a RoutingError's Kind to its HTTP status, the same single
// pure function pattern httpmsg.ErrorKind.Status uses.
func (k ErrorKind) Status() int {
	switch k {
	case KindPayloadTooLarge:
		return 413
	case KindMethodNotAllowed:
		return 405
	case KindNotFound:
		return 404
	default:
		return 500
	}
}

// Error is a routing-stage failure, distinct from httpmsg.ParseError.
type Error struct {
	Kind ErrorKind
	// Allow is populated for KindMethodNotAllowed with the location's
	// permitted method list (spec.md §4.D rule 4).
	Allow string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindPayloadTooLarge:
		return "router: payload too large for matched server"
	case KindMethodNotAllowed:
		return "router: method not allowed for matched location"
	case KindNotFound:
		return "router: no location matched"
	default:
		return "router: unknown error"
	}
}

// Decision is the outcome of a successful route: a matched server and
// location, ready for the static handler or CGI gateway to act on.
type Decision struct {
	Server   *config.ServerConfig
	Location *config.LocationConfig
}

// IsRedirect reports whether the matched location is a pure redirect
// (spec.md §4.D rule 5): the caller should build a redirect response and
// never reach static/CGI dispatch.
func (d *Decision) IsRedirect() bool {
	return d.Location.Redirect != nil
}

// Route implements spec.md §4.D steps 1-4: select server, re-validate
// Content-Length against the server's exact limit, select location by
// longest-prefix match, and enforce the location's allowed methods.
// Redirect handling (rule 5) and CGI-vs-static dispatch (rule 6) are left
// to the caller, which holds Decision.
func Route(ep *config.ListenEndpoint, req *httpmsg.Request) (*Decision, error) {
	server := ep.SelectServer(hostnameOnly(req.HostString()))
	if server == nil {
		return nil, &Error{Kind: KindNotFound}
	}

	if req.ContentLength > 0 && req.ContentLength > server.ClientMaxBodySize {
		return nil, &Error{Kind: KindPayloadTooLarge}
	}

	loc := matchLocation(server, req.Path())
	if loc == nil {
		return nil, &Error{Kind: KindNotFound}
	}

	method := config.Method(req.Method())
	if !loc.MethodAllowed(method) {
		return nil, &Error{Kind: KindMethodNotAllowed, Allow: loc.AllowHeaderValue()}
	}

	return &Decision{Server: server, Location: loc}, nil
}

// hostnameOnly strips a trailing :port from a Host header value
// (spec.md §4.D rule 1: "the hostname part of Host, port stripped").
func hostnameOnly(host string) string {
	if idx := strings.LastIndexByte(host, ':'); idx != -1 {
		// Guard against a bare IPv6 literal like "::1" with no port; a
		// port suffix is only present when what follows is all digits.
		if isAllDigits(host[idx+1:]) {
			return host[:idx]
		}
	}
	return host
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// matchLocation implements spec.md §4.D rule 3: the location whose prefix
// is the longest path prefix of path, with boundary on '/'. Ties are
// broken by declaration order, which is why this scans in slice order and
// only replaces the current best on a strictly longer match.
func matchLocation(server *config.ServerConfig, path string) *config.LocationConfig {
	var best *config.LocationConfig
	bestLen := -1

	for i := range server.Locations {
		loc := &server.Locations[i]
		if !prefixMatches(loc.Prefix, path) {
			continue
		}
		if len(loc.Prefix) > bestLen {
			best = loc
			bestLen = len(loc.Prefix)
		}
	}
	return best
}

// prefixMatches reports whether prefix matches path on a '/' boundary:
// "/api" matches "/api" and "/api/v1" but not "/apiextra".
func prefixMatches(prefix, path string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if prefix == "/" {
		return true
	}
	if len(path) == len(prefix) {
		return true
	}
	return path[len(prefix)] == '/'
}
