package config

// Defaults not overridden by an explicit directive (spec.md §4.F, §5).
const (
	DefaultClientMaxBodySize = 8 * 1024 * 1024
	DefaultIdleTimeoutSec    = 60
	DefaultCGITimeoutSec     = 30
	DefaultRedirectStatus    = 302
)

var defaultIndexFiles = []string{"index.html"}

func newServerConfig() *ServerConfig {
	return &ServerConfig{
		IndexFiles:        append([]string{}, defaultIndexFiles...),
		ClientMaxBodySize: DefaultClientMaxBodySize,
		ErrorPages:        make(map[int]string),
	}
}

func newLocationConfig(prefix string) LocationConfig {
	return LocationConfig{
		Prefix:         prefix,
		AllowedMethods: make(map[Method]bool),
	}
}
