// Package config parses the nginx-like block grammar described in
// spec.md §6 into an immutable tree of servers, listen endpoints, and
// locations (spec.md §3 Data Model). The tree is read-only after Load
// returns and is safe to share across every Connection the engine drives.
package config

import "fmt"

// Method is one of the three HTTP methods this server ever dispatches.
type Method string

const (
	MethodGET    Method = "GET"
	MethodPOST   Method = "POST"
	MethodDELETE Method = "DELETE"
)

// Redirect is a location's `return`/`redirect` directive.
type Redirect struct {
	Status int
	Target string
}

// LocationConfig is one `location <prefix> { ... }` block (spec.md §3).
type LocationConfig struct {
	Prefix string

	// At most one of Root/Alias is set; Alias replaces Prefix in the
	// resolved filesystem path instead of appending the URI to Root.
	Root  string
	Alias string

	IndexFiles []string

	AllowedMethods map[Method]bool

	Autoindex bool

	CGIExtension       string
	CGIInterpreterPath string

	Redirect *Redirect
}

// UsesAlias reports whether this location was configured with `alias`
// rather than `root`.
func (l *LocationConfig) UsesAlias() bool { return l.Alias != "" }

// HasCGI reports whether this location dispatches to a CGI interpreter.
func (l *LocationConfig) HasCGI() bool {
	return l.CGIExtension != "" && l.CGIInterpreterPath != ""
}

// MethodAllowed reports whether m is in AllowedMethods. An empty
// AllowedMethods set (the directive was never given) allows every method
// this server core ever dispatches.
func (l *LocationConfig) MethodAllowed(m Method) bool {
	if len(l.AllowedMethods) == 0 {
		return true
	}
	return l.AllowedMethods[m]
}

// AllowHeaderValue renders AllowedMethods as the comma-joined list the
// router puts in a 405 response's Allow header (spec.md §4.D rule 4).
func (l *LocationConfig) AllowHeaderValue() string {
	methods := []Method{MethodGET, MethodPOST, MethodDELETE}
	out := ""
	for _, m := range methods {
		if l.MethodAllowed(m) {
			if out != "" {
				out += ", "
			}
			out += string(m)
		}
	}
	return out
}

// ServerConfig is one `server { ... }` block (spec.md §3).
type ServerConfig struct {
	Names []string

	Root       string
	IndexFiles []string

	ClientMaxBodySize int64

	// ErrorPages maps an HTTP status code to a filesystem path to serve
	// verbatim with that status, overriding the generated HTML page.
	ErrorPages map[int]string

	Locations []LocationConfig
}

// IsDefault reports whether this server has no server_name directives,
// making it the default server for every endpoint it is bound to
// (spec.md §3: "A server with an empty names list is the default").
func (s *ServerConfig) IsDefault() bool { return len(s.Names) == 0 }

// MatchesHost reports whether hostname (already stripped of any :port
// suffix) is one of this server's configured names.
func (s *ServerConfig) MatchesHost(hostname string) bool {
	for _, n := range s.Names {
		if n == hostname {
			return true
		}
	}
	return false
}

// ListenEndpoint is a distinct (address, port) listening socket, shared by
// every ServerConfig bound to it (spec.md §3, §9 "virtual hosts sharing a
// port": one socket per endpoint, dispatch by Host after accept).
type ListenEndpoint struct {
	Address string
	Port    int

	Servers []*ServerConfig
}

// String renders the endpoint as address:port, with the address the
// parser resolved (0.0.0.0 when the listen directive gave only a port).
func (e *ListenEndpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}

// DefaultServer returns the server this endpoint falls back to when no
// server_name matches the Host header (spec.md §4.D rule 1): the first
// server with no names, or else the first server declared on this
// endpoint at all.
func (e *ListenEndpoint) DefaultServer() *ServerConfig {
	for _, s := range e.Servers {
		if s.IsDefault() {
			return s
		}
	}
	if len(e.Servers) > 0 {
		return e.Servers[0]
	}
	return nil
}

// SelectServer implements spec.md §4.D rule 1: Host-header server
// selection within one endpoint.
func (e *ListenEndpoint) SelectServer(hostname string) *ServerConfig {
	for _, s := range e.Servers {
		if s.MatchesHost(hostname) {
			return s
		}
	}
	return e.DefaultServer()
}

// Config is the fully parsed, immutable configuration tree.
type Config struct {
	Endpoints []*ListenEndpoint

	IdleTimeoutSeconds int
	CGITimeoutSeconds  int
}

// EndpointFor returns the endpoint bound to address:port, or nil.
func (c *Config) EndpointFor(address string, port int) *ListenEndpoint {
	for _, e := range c.Endpoints {
		if e.Address == address && e.Port == port {
			return e
		}
	}
	return nil
}
