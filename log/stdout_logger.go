package log

import (
	"fmt"
	"time"
)

// StdoutLogger is a Logger implementation that writes every log line to stdout; it's useful for the CLI binaries
// built on top of this library (out of scope here) and for exercising components during development.
type StdoutLogger struct{}

// Log implements Logger.
func (s StdoutLogger) Log(level Level, msg string, args ...any) {
	var prefix string

	switch level {
	case LevelTrace:
		prefix = "TRAC"
	case LevelDebug:
		prefix = "DEBU"
	case LevelInfo:
		prefix = "INFO"
	case LevelWarning:
		prefix = "WARN"
	case LevelError:
		prefix = "ERRO"
	case LevelPanic:
		prefix = "PNIC"
	}

	fmt.Println(time.Now().Format(time.RFC3339Nano) + " " + prefix + ": " + fmt.Sprintf(msg, args...))
}
