//go:build debug && !trace

package build

// LogLevel specifies the debug log level.
var LogLevel = "debug"
