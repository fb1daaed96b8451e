// Package logging builds the zerolog logger used by vendorsum commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the logger.
type Options struct {
	// Level is a zerolog level name (debug, info, warn, error). Default: info.
	Level string `yaml:"level"`
	// Human switches stderr output to the console writer.
	Human bool `yaml:"human"`
	// File, when set, receives a JSON copy of every event. The file is
	// opened in append mode and its directory is created when missing.
	File string `yaml:"file"`
	// Out replaces stderr. Used by tests.
	Out io.Writer `yaml:"-"`
}

// DefaultOptions returns JSON logging at info level to stderr only.
func DefaultOptions() Options {
	return Options{Level: "info"}
}

// ParseLevel parses a level name; the empty string is info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// New builds a logger from opts. The returned closer releases the log file
// and must be called when the command finishes.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Human {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	var closer io.Closer = nopCloser{}
	console := zerolog.LevelWriterAdapter{Writer: out}
	var writer zerolog.LevelWriter = console
	if opts.File != "" {
		f, err := openAppend(opts.File)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, err
		}
		closer = f
		writer = zerolog.MultiLevelWriter(console, f)
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
