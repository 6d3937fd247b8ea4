package config

import (
	"fmt"
	"io"
	"sort"
)

// Dump pretty-prints the parsed tree for operator debugging, grounded on
// the original implementation's configdisplay.cpp. It is exposed as
// `webserv -t` (parse, validate, print, exit) per SPEC_FULL.md's
// supplemented features.
func (c *Config) Dump(w io.Writer) {
	for _, ep := range c.Endpoints {
		fmt.Fprintf(w, "endpoint %s\n", ep.String())
		for _, s := range ep.Servers {
			dumpServer(w, s)
		}
	}
}

func dumpServer(w io.Writer, s *ServerConfig) {
	name := "(default)"
	if !s.IsDefault() {
		name = fmt.Sprintf("%v", s.Names)
	}
	fmt.Fprintf(w, "  server %s\n", name)
	fmt.Fprintf(w, "    root: %s\n", s.Root)
	fmt.Fprintf(w, "    index: %v\n", s.IndexFiles)
	fmt.Fprintf(w, "    client_max_body_size: %d\n", s.ClientMaxBodySize)

	if len(s.ErrorPages) > 0 {
		codes := make([]int, 0, len(s.ErrorPages))
		for code := range s.ErrorPages {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "    error_page %d: %s\n", code, s.ErrorPages[code])
		}
	}

	for _, loc := range s.Locations {
		dumpLocation(w, &loc)
	}
}

func dumpLocation(w io.Writer, l *LocationConfig) {
	fmt.Fprintf(w, "    location %s\n", l.Prefix)
	if l.Alias != "" {
		fmt.Fprintf(w, "      alias: %s\n", l.Alias)
	} else if l.Root != "" {
		fmt.Fprintf(w, "      root: %s\n", l.Root)
	}
	if len(l.IndexFiles) > 0 {
		fmt.Fprintf(w, "      index: %v\n", l.IndexFiles)
	}
	fmt.Fprintf(w, "      allow_methods: %s\n", l.AllowHeaderValue())
	fmt.Fprintf(w, "      autoindex: %v\n", l.Autoindex)
	if l.HasCGI() {
		fmt.Fprintf(w, "      cgi %s -> %s\n", l.CGIExtension, l.CGIInterpreterPath)
	}
	if l.Redirect != nil {
		fmt.Fprintf(w, "      return %d %s\n", l.Redirect.Status, l.Redirect.Target)
	}
}
