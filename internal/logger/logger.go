// Package logger holds the process-wide leveled loggers used by the pricing
// server and the command-line tools.
//
// Levels run error < warn < info < debug < verbose. A logger whose level is
// above the configured one writes to io.Discard, so disabled call sites cost
// a formatted discard and nothing more. Error always writes; Always writes
// whenever output is configured, regardless of level.
package logger

import (
	"io"
	"log"
	"os"
	"slices"
)

var (
	Info    *log.Logger
	Warn    *log.Logger
	Debug   *log.Logger
	Verbose *log.Logger
	Error   *log.Logger
	Always  *log.Logger // Always logs to file regardless of log level

	// Current log level for filtering
	currentLogLevel string
)

// Until Init runs, only errors are written (to stderr); the engine can be
// used as a library without any logging setup.
func init() {
	currentLogLevel = "error"
	setWriters(os.Stderr, io.Discard)
}

func Init() error {
	return InitWithLevel("info")
}

func InitWithLevel(logLevel string) error {
	return InitWithConfig(logLevel, "optionkit.log")
}

// InitWithConfig logs at logLevel and above to logFilePath. An empty path
// logs to stderr only.
func InitWithConfig(logLevel, logFilePath string) error {
	currentLogLevel = logLevel

	if logFilePath == "" {
		setWriters(os.Stderr, os.Stderr)
		return nil
	}

	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	setWriters(io.MultiWriter(os.Stderr, logFile), logFile)
	return nil
}

// InitWithWriter sends every enabled level to w. Tests use it to capture output.
func InitWithWriter(logLevel string, w io.Writer) {
	currentLogLevel = logLevel
	setWriters(w, w)
}

// levelOrder lists the levels from least to most chatty.
var levelOrder = []string{"error", "warn", "info", "debug", "verbose"}

func setWriters(errWriter, activeWriter io.Writer) {
	Info = log.New(gated("info", activeWriter), "ℹ️  INFO: ", log.Ldate|log.Ltime)
	Warn = log.New(gated("warn", activeWriter), "⚠️  WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	Debug = log.New(gated("debug", activeWriter), "🐛 DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	Verbose = log.New(gated("verbose", activeWriter), "🔍 VERBOSE: ", log.Ldate|log.Ltime|log.Lshortfile)
	Error = log.New(errWriter, "❌ ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	Always = log.New(activeWriter, "📝 ALWAYS: ", log.Ldate|log.Ltime)
}

// gated returns w when level is enabled and io.Discard otherwise.
func gated(level string, w io.Writer) io.Writer {
	if !enabled(level) {
		return io.Discard
	}
	return w
}

// enabled reports whether level is at or below the configured level. An
// unrecognised configured level behaves as info; an unrecognised level is
// never enabled.
func enabled(level string) bool {
	want := slices.Index(levelOrder, level)
	if want < 0 {
		return false
	}
	have := slices.Index(levelOrder, currentLogLevel)
	if have < 0 {
		have = slices.Index(levelOrder, "info")
	}
	return want <= have
}
