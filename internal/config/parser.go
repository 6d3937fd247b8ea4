package config

import (
	"net"
	"strconv"
	"strings"
)

// parser walks a flat token stream produced by tokenize and builds the
// Config tree via straightforward recursive descent: the grammar in
// spec.md §6 has exactly two block types (server, location), so there is
// no need for a general-purpose grammar engine.
type parser struct {
	tokens []token
	pos    int
}

// Parse parses the full text of a configuration file.
func Parse(src string) (*Config, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	cfg := &Config{
		IdleTimeoutSeconds: DefaultIdleTimeoutSec,
		CGITimeoutSeconds:  DefaultCGITimeoutSec,
	}

	for !p.at(tokenEOF) {
		word, line := p.expectWord()
		if word == "" {
			return nil, newParseError(line, "expected %q, got %q", "server", p.cur().text)
		}
		if word != "server" {
			return nil, newParseError(line, "unexpected top-level directive %q; only %q blocks are allowed", word, "server")
		}
		server, err := p.parseServerBlock()
		if err != nil {
			return nil, err
		}
		if err := cfg.bindServer(server); err != nil {
			return nil, err
		}
	}

	if len(cfg.Endpoints) == 0 {
		return nil, newParseError(0, "configuration declares no listen endpoints")
	}
	return cfg, nil
}

// serverDecl is the parser's intermediate form: a ServerConfig plus the
// raw listen directives it carried, resolved into endpoints afterward.
type serverDecl struct {
	*ServerConfig
	listens []string
}

func (p *parser) parseServerBlock() (*serverDecl, error) {
	if err := p.expect(tokenLBrace); err != nil {
		return nil, err
	}

	decl := &serverDecl{ServerConfig: newServerConfig()}

	for !p.at(tokenRBrace) {
		if p.at(tokenEOF) {
			return nil, newParseError(p.cur().line, "unterminated server block")
		}
		name, line := p.expectWord()

		switch name {
		case "listen":
			val, _ := p.expectWord()
			decl.listens = append(decl.listens, val)
			if err := p.expect(tokenSemicolon); err != nil {
				return nil, err
			}
		case "server_name":
			names, err := p.wordsUntilSemicolon()
			if err != nil {
				return nil, err
			}
			decl.Names = append(decl.Names, names...)
		case "root":
			val, _ := p.expectWord()
			decl.Root = val
			if err := p.expect(tokenSemicolon); err != nil {
				return nil, err
			}
		case "index":
			files, err := p.wordsUntilSemicolon()
			if err != nil {
				return nil, err
			}
			decl.IndexFiles = files
		case "client_max_body_size":
			val, vline := p.expectWord()
			n, err := parseSize(val)
			if err != nil {
				return nil, newParseError(vline, "client_max_body_size: %v", err)
			}
			decl.ClientMaxBodySize = n
			if err := p.expect(tokenSemicolon); err != nil {
				return nil, err
			}
		case "error_page":
			codeTok, cline := p.expectWord()
			code, err := strconv.Atoi(codeTok)
			if err != nil {
				return nil, newParseError(cline, "error_page: invalid status code %q", codeTok)
			}
			path, _ := p.expectWord()
			decl.ErrorPages[code] = path
			if err := p.expect(tokenSemicolon); err != nil {
				return nil, err
			}
		case "location":
			prefix, _ := p.expectWord()
			loc, err := p.parseLocationBlock(prefix)
			if err != nil {
				return nil, err
			}
			decl.Locations = append(decl.Locations, loc)
		default:
			return nil, newParseError(line, "unknown server directive %q", name)
		}
	}

	return decl, p.expect(tokenRBrace)
}

func (p *parser) parseLocationBlock(prefix string) (LocationConfig, error) {
	loc := newLocationConfig(prefix)

	if err := p.expect(tokenLBrace); err != nil {
		return loc, err
	}

	for !p.at(tokenRBrace) {
		if p.at(tokenEOF) {
			return loc, newParseError(p.cur().line, "unterminated location block")
		}
		name, line := p.expectWord()

		switch name {
		case "root":
			val, _ := p.expectWord()
			if loc.Alias != "" {
				return loc, newParseError(line, "location %q: root and alias are mutually exclusive", prefix)
			}
			loc.Root = val
			if err := p.expect(tokenSemicolon); err != nil {
				return loc, err
			}
		case "alias":
			val, _ := p.expectWord()
			if loc.Root != "" {
				return loc, newParseError(line, "location %q: root and alias are mutually exclusive", prefix)
			}
			loc.Alias = val
			if err := p.expect(tokenSemicolon); err != nil {
				return loc, err
			}
		case "index":
			files, err := p.wordsUntilSemicolon()
			if err != nil {
				return loc, err
			}
			loc.IndexFiles = files
		case "allow_methods":
			words, err := p.wordsUntilSemicolon()
			if err != nil {
				return loc, err
			}
			for _, w := range words {
				m := Method(strings.ToUpper(w))
				if m != MethodGET && m != MethodPOST && m != MethodDELETE {
					return loc, newParseError(line, "allow_methods: unsupported method %q", w)
				}
				loc.AllowedMethods[m] = true
			}
		case "autoindex":
			val, vline := p.expectWord()
			switch val {
			case "on":
				loc.Autoindex = true
			case "off":
				loc.Autoindex = false
			default:
				return loc, newParseError(vline, "autoindex: expected on|off, got %q", val)
			}
			if err := p.expect(tokenSemicolon); err != nil {
				return loc, err
			}
		case "cgi":
			ext, _ := p.expectWord()
			interp, _ := p.expectWord()
			loc.CGIExtension = ext
			loc.CGIInterpreterPath = interp
			if err := p.expect(tokenSemicolon); err != nil {
				return loc, err
			}
		case "return", "redirect":
			codeTok, cline := p.expectWord()
			code, err := strconv.Atoi(codeTok)
			if err != nil {
				return loc, newParseError(cline, "%s: invalid status code %q", name, codeTok)
			}
			target, _ := p.expectWord()
			loc.Redirect = &Redirect{Status: code, Target: target}
			if err := p.expect(tokenSemicolon); err != nil {
				return loc, err
			}
		default:
			return loc, newParseError(line, "unknown location directive %q", name)
		}
	}

	return loc, p.expect(tokenRBrace)
}

// bindServer resolves each listen directive on decl to a ListenEndpoint,
// creating one the first time an (address,port) pair is seen (spec.md §9:
// "one socket per (addr,port) with name-based dispatch after accept").
func (c *Config) bindServer(decl *serverDecl) error {
	if len(decl.listens) == 0 {
		return newParseError(0, "server block has no listen directive")
	}
	for _, raw := range decl.listens {
		addr, port, err := parseListenAddr(raw)
		if err != nil {
			return newParseError(0, "listen %q: %v", raw, err)
		}
		ep := c.EndpointFor(addr, port)
		if ep == nil {
			ep = &ListenEndpoint{Address: addr, Port: port}
			c.Endpoints = append(c.Endpoints, ep)
		}
		ep.Servers = append(ep.Servers, decl.ServerConfig)
	}
	return nil
}

func parseListenAddr(raw string) (addr string, port int, err error) {
	if idx := strings.LastIndex(raw, ":"); idx != -1 {
		host := raw[:idx]
		p, err := strconv.Atoi(raw[idx+1:])
		if err != nil {
			return "", 0, err
		}
		if host == "" {
			host = "0.0.0.0"
		}
		if net.ParseIP(host) == nil && host != "0.0.0.0" && host != "localhost" {
			return "", 0, &net.AddrError{Err: "invalid listen address", Addr: host}
		}
		return host, p, nil
	}
	p, err := strconv.Atoi(raw)
	if err != nil {
		return "", 0, err
	}
	return "0.0.0.0", p, nil
}

func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, newParseError(0, "empty size value")
	}
	mult := int64(1)
	last := s[len(s)-1]
	switch last {
	case 'k', 'K':
		mult = 1024
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}

func (p *parser) cur() token { return p.tokens[p.pos] }

func (p *parser) at(k tokenKind) bool { return p.cur().kind == k }

func (p *parser) expect(k tokenKind) error {
	if p.cur().kind != k {
		return newParseError(p.cur().line, "expected token kind %d, got %q", k, p.cur().text)
	}
	p.pos++
	return nil
}

func (p *parser) expectWord() (string, int) {
	if p.cur().kind != tokenWord {
		return "", p.cur().line
	}
	t := p.cur()
	p.pos++
	return t.text, t.line
}

// wordsUntilSemicolon collects every word token up to (and consuming) the
// next semicolon, for directives that take a variable-length list
// (server_name, index, allow_methods).
func (p *parser) wordsUntilSemicolon() ([]string, error) {
	var words []string
	for p.at(tokenWord) {
		w, _ := p.expectWord()
		words = append(words, w)
	}
	if err := p.expect(tokenSemicolon); err != nil {
		return nil, err
	}
	return words, nil
}
