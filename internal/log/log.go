// Package log provides the runtime's verbosity-gated diagnostic stream. It
// writes structured records to stderr, each tagged with system=cali and the
// process id; the core hot paths never log.
package log

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// Verbosity levels. Level 0 reports errors only, 1 adds lifecycle messages,
// 2 adds configuration dumps and per-channel diagnostics.
const (
	LevelError = 0
	LevelInfo  = 1
	LevelDebug = 2
)

// VerbosityEnv is the environment variable controlling the level.
const VerbosityEnv = "CALI_LOG_VERBOSITY"

var (
	verbosity atomic.Int32

	mu     sync.Mutex
	logger = newLogger(os.Stderr)
)

func init() {
	if s, ok := os.LookupEnv(VerbosityEnv); ok {
		if v, err := strconv.Atoi(s); err == nil {
			verbosity.Store(int32(v))
		}
	}
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{})).
		With(slog.String("system", "cali"), slog.Int("pid", os.Getpid()))
}

// SetVerbosity overrides the level.
func SetVerbosity(v int) {
	verbosity.Store(int32(v))
}

// Verbosity returns the current level.
func Verbosity() int {
	return int(verbosity.Load())
}

// SetOutput redirects the stream. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	logger = newLogger(w)
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	return logger
}

// Error reports an error unconditionally.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// Info reports a lifecycle message at verbosity >= 1.
func Info(msg string, args ...any) {
	if Verbosity() >= LevelInfo {
		current().Info(msg, args...)
	}
}

// Debug reports a diagnostic message at verbosity >= 2.
func Debug(msg string, args ...any) {
	if Verbosity() >= LevelDebug {
		current().Info(msg, args...)
	}
}
