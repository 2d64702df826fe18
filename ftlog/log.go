// Package ftlog provides the engine's logging hook, modeled on gdbx's
// compat.go LoggerFunc/SetLogger/SetDebug: a single settable function
// rather than a third-party structured-logging dependency, since the
// teacher carries none and the spec's ambient stack follows the teacher.
package ftlog

import "fmt"

// Level mirrors the handful of severities verify/vacuum progress reporting
// needs.
type Level int

const (
	Debug Level = iota
	Info
	Warn
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Warn:
		return "warn"
	default:
		return "info"
	}
}

// Func is called for every log line. The default discards everything;
// SetLogger installs a host-supplied sink.
var Func func(level Level, msg string) = func(Level, string) {}

// SetLogger installs fn as the sink for all subsequent log calls.
func SetLogger(fn func(level Level, msg string)) {
	if fn == nil {
		fn = func(Level, string) {}
	}
	Func = fn
}

func Debugf(format string, args ...any) { Func(Debug, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { Func(Info, fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Func(Warn, fmt.Sprintf(format, args...)) }
