//go:build !stdlog && !nolog

package build

// LoggingType is a log type that writes through the application's log
// backend.
const LoggingType = LogTypeDefault
