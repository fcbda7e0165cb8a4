package logger

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options selects the level and encoder of a Logger.
type Options struct {
	Level  string
	Format string
}

// New builds a Logger writing to stdout. Unknown levels fall back to debug,
// unknown formats to console.
func New(opts Options) *Logger {
	return newZapLogger(opts)
}
