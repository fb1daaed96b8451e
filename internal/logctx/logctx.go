// Package logctx carries the run-scoped logger through context.Context.
//
// Each command invocation builds one logger, tags it with a run ID and
// attaches it to the context handed to every component. Components extract
// it with FromContext and add their own fields (file, table, chunk):
//
//	ctx = logctx.WithLogger(ctx, logger)
//	ctx = logctx.WithRun(ctx, "ingest")
//	fileCtx := logctx.WithStr(ctx, "file", name)
//	log := logctx.FromContext(fileCtx)
//	log.Info().Msg("processing file")
package logctx

import (
	"context"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type loggerKey struct{}

type runIDKey struct{}

var (
	defaultLogger     zerolog.Logger
	defaultLoggerOnce sync.Once
)

func initDefaultLogger() {
	defaultLoggerOnce.Do(func() {
		defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
}

// DefaultLogger returns the logger used when a context carries none: JSON
// to stderr with timestamps.
func DefaultLogger() zerolog.Logger {
	initDefaultLogger()
	return defaultLogger
}

// WithLogger returns a new context with the given logger attached.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from the context, falling back to the
// default logger. It never returns a zero-value logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return DefaultLogger()
}

// WithRun starts a run scope: it generates a run ID, stores it in the
// context and tags the context logger with run_id and command.
func WithRun(ctx context.Context, command string) context.Context {
	id := uuid.NewString()
	ctx = context.WithValue(ctx, runIDKey{}, id)
	logger := FromContext(ctx).With().
		Str("run_id", id).
		Str("command", command).
		Logger()
	return WithLogger(ctx, logger)
}

// RunID returns the run ID set by WithRun, or "" outside a run.
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// WithStr returns a new context with a logger that has the string field added.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithInt returns a new context with a logger that has the int field added.
func WithInt(ctx context.Context, key string, value int) context.Context {
	logger := FromContext(ctx).With().Int(key, value).Logger()
	return WithLogger(ctx, logger)
}
