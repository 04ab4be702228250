// Package logging builds the ndisasm diagnostic logger. It is configured
// from NDISASM_LOG_* environment variables and can write to a timestamped
// debug file that `ndisasm logs` later picks up.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Environment variables read by NewLogger.
const (
	EnvLevel  = "NDISASM_LOG_LEVEL"
	EnvPrefix = "NDISASM_LOG_PREFIX"
	EnvToFile = "NDISASM_LOG_TO_FILE"
)

// FileGlob matches every debug log NewLogger may create.
const FileGlob = "ndisasm-*-debug.log"

const defaultPrefix = "ndisasm "

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
	path   string
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// Path is the file the logger writes to, or "" for stderr.
func (lc *LoggerCloser) Path() string { return lc.path }

// NewLoggerWithWriter creates a new logger with the provided writer
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	lg.SetLevel(levelFromEnv())

	prefix := os.Getenv(EnvPrefix)
	if prefix == "" {
		prefix = defaultPrefix
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// NDISASM_LOG_LEVEL: debug, info, warn, error (default: info)
// NDISASM_LOG_PREFIX: prefix for log messages (default: "ndisasm ")
// NDISASM_LOG_TO_FILE: when set to "1", logs to a timestamped file in the
// working directory instead of stderr
func NewLogger() *LoggerCloser {
	if os.Getenv(EnvToFile) != "1" {
		return NewLoggerWithWriter(os.Stderr)
	}

	name := fmt.Sprintf("ndisasm-%s-debug.log", time.Now().Format("20060102-150405"))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		// Fall back to stderr.
		return NewLoggerWithWriter(os.Stderr)
	}
	lc := NewLoggerWithWriter(f)
	lc.path = name
	return lc
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return levelFromEnv() == log.DebugLevel
}

func levelFromEnv() log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(os.Getenv(EnvLevel)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// LatestFile returns the newest debug log in dir. File names embed a
// sortable timestamp, so the last one in lexical order wins.
func LatestFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, FileGlob))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no debug log in %s", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
