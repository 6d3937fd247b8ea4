package config

import "fmt"

// ParseError reports a malformed configuration file with the line at
// which the tokenizer or parser gave up, so an operator can find it
// without a debugger.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: line %d: %s", e.Line, e.Message)
}

func newParseError(line int, format string, args ...any) error {
	return &ParseError{Line: line, Message: fmt.Sprintf(format, args...)}
}
