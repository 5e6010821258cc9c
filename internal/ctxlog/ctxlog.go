// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type loggerKey struct{}

// ErrUnknownLevel is returned when a level name cannot be parsed.
var ErrUnknownLevel = errors.New("unknown log level")

// LevelVar is shared by every logger built by this package.
var LevelVar = &slog.LevelVar{}

// DefaultLogger is used when the context carries no logger.
var DefaultLogger = NewPrettyLogger(os.Stderr, WithAutoColour())

func init() {
	LevelVar.Set(logLevelFromEnv())
}

// NewPrettyLogger returns a logger using PrettyHandler on w at the shared level.
func NewPrettyLogger(w io.Writer, opts ...Option) *slog.Logger {
	opts = append([]Option{WithDestinationWriter(w)}, opts...)

	return slog.New(NewPrettyHandler(&slog.HandlerOptions{Level: LevelVar}, opts...))
}

// NewJSONLogger returns a logger emitting one JSON object per record on w.
func NewJSONLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: LevelVar}))
}

// New returns a copy of ctx carrying logger, or DefaultLogger when logger is nil.
func New(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = DefaultLogger
	}

	return context.WithValue(ctx, loggerKey{}, logger)
}

// NewForTUI returns a context whose logger writes uncoloured output to w,
// so log lines do not tear the terminal while the TUI owns it.
func NewForTUI(ctx context.Context, w io.Writer) context.Context {
	return New(ctx, NewPrettyLogger(w))
}

// With returns a context whose logger has the given attributes added.
func With(ctx context.Context, args ...any) context.Context {
	return New(ctx, Logger(ctx).With(args...))
}

// Logger returns the logger from the context, or the default logger if not found.
func Logger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return DefaultLogger
	}

	return logger
}

// Info logs an info message with the given context.
func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Info(msg, args...)
}

// Debug logs a debug message with the given context.
func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Debug(msg, args...)
}

// Warn logs a warning message with the given context.
func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Warn(msg, args...)
}

// Error logs an error message with the given context.
func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Error(msg, args...)
}

// ParseLevel converts DEBUG, INFO, WARN or ERROR (any case) into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}

	return slog.LevelWarn, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// LevelEnvName is the environment variable holding the log level for this executable.
func LevelEnvName() string {
	exec, _ := os.Executable()
	exec = filepath.Base(exec)
	exec = strings.TrimSuffix(exec, ".exe")
	exec = strings.ReplaceAll(exec, "-", "_")

	return strings.ToUpper(exec) + "_LOG_LEVEL"
}

func logLevelFromEnv() slog.Level {
	level, err := ParseLevel(os.Getenv(LevelEnvName()))
	if err != nil {
		return slog.LevelWarn
	}

	return level
}
