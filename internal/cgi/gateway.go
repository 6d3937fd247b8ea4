package cgi

import (
	"os"
	"time"

	"github.com/yourusername/webserv/internal/config"
)

// ErrorKind distinguishes the gateway's three failure modes (spec.md
// §4.F / §6.3).
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindSpawnFailed
	KindTimeout
	KindMalformedOutput
)

// Status maps an ErrorKind to its HTTP status per spec.md §6.3: "500 on
// pipe/fork/exec failure, 504 on timeout, 502 on CGI output parse
// failure".
func (k ErrorKind) Status() int {
	switch k {
	case KindSpawnFailed:
		return 500
	case KindTimeout:
		return 504
	case KindMalformedOutput:
		return 502
	default:
		return 200
	}
}

// Error wraps a gateway failure with its Kind, so the engine can map it
// to a status without string-matching.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Invoke runs the CGI contract end to end: synthesize the environment,
// fork the interpreter, stream the body in, collect output within
// timeout, and parse the result (spec.md §4.F).
func Invoke(req *Request, loc *config.LocationConfig, timeout time.Duration) (Output, error) {
	if _, err := os.Stat(loc.CGIInterpreterPath); err != nil {
		return Output{}, &Error{Kind: KindSpawnFailed, Err: err}
	}

	env := BuildEnv(req, loc)

	raw, err := Run(loc.CGIInterpreterPath, req.ScriptPath, env, req.Body, timeout)
	if err != nil {
		if err == ErrTimeout {
			return Output{}, &Error{Kind: KindTimeout, Err: err}
		}
		return Output{}, &Error{Kind: KindSpawnFailed, Err: err}
	}

	out, err := ParseOutput(raw)
	if err != nil {
		return Output{}, &Error{Kind: KindMalformedOutput, Err: err}
	}
	return out, nil
}
