package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool

	logger = log.NewWithOptions(io.Discard, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           log.DebugLevel,
	})
)

// DefaultPath is ~/.config/go-beats/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-beats", "debug.log")
}

// Enable starts debug logging to path (DefaultPath if empty). The file is
// truncated on every start.
func Enable(path string, level string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}

	lvl := log.DebugLevel
	if level != "" {
		if parsed, err := log.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}

	file = f
	enabled = true
	logger.SetOutput(f)
	logger.SetLevel(lvl)
	logger.Info("=== Debug logging started ===", "at", time.Now().Format(time.RFC3339))

	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	logger.SetOutput(io.Discard)
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Enabled reports whether a log file is open.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Logger returns the shared logger. Components that take a *log.Logger
// (the transport, the background renderer) get this one.
func Logger() *log.Logger {
	return logger
}

// SetOutput redirects the shared logger, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Log writes a message to the debug log under a category
func Log(category, format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...), "cat", category)
}

// Warn logs a failure that was absorbed.
func Warn(category string, err error, keyvals ...any) {
	logger.Warn(err.Error(), append([]any{"cat", category}, keyvals...)...)
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
