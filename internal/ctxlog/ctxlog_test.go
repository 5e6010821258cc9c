// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFromContext(t *testing.T) {
	tests := []struct {
		name          string
		setupContext  func() context.Context
		expectDefault bool
	}{
		{
			name: "context with logger",
			setupContext: func() context.Context {
				return New(context.Background(), NewJSONLogger(&bytes.Buffer{}))
			},
			expectDefault: false,
		},
		{
			name:          "context without logger",
			setupContext:  context.Background,
			expectDefault: true,
		},
		{
			name: "context with nil logger",
			setupContext: func() context.Context {
				return New(context.Background(), nil)
			},
			expectDefault: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := Logger(tt.setupContext())
			require.NotNil(t, logger)

			if tt.expectDefault {
				assert.Same(t, DefaultLogger, logger)
			} else {
				assert.NotSame(t, DefaultLogger, logger)
			}
		})
	}
}

func TestWithAddsAttributes(t *testing.T) {
	prev := LevelVar.Level()
	LevelVar.Set(slog.LevelDebug)
	defer LevelVar.Set(prev)

	buf := &bytes.Buffer{}
	ctx := New(context.Background(), NewJSONLogger(buf))
	ctx = With(ctx, "run_id", "01J0000000000000000000000")

	Info(ctx, "batch started", "batch", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "batch started", rec["msg"])
	assert.Equal(t, "01J0000000000000000000000", rec["run_id"])
	assert.InDelta(t, 3, rec["batch"], 0)
}

func TestLevelHelpersRespectLevel(t *testing.T) {
	prev := LevelVar.Level()
	LevelVar.Set(slog.LevelWarn)
	defer LevelVar.Set(prev)

	buf := &bytes.Buffer{}
	ctx := New(context.Background(), NewJSONLogger(buf))

	Debug(ctx, "hidden")
	Info(ctx, "hidden")
	assert.Zero(t, buf.Len())

	Warn(ctx, "shown")
	Error(ctx, "shown too")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: " warn ", want: slog.LevelWarn},
		{in: "WARNING", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "", want: slog.LevelWarn, wantErr: true},
		{in: "loud", want: slog.LevelWarn, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownLevel)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogLevelFromEnv(t *testing.T) {
	t.Setenv(LevelEnvName(), "DEBUG")
	assert.Equal(t, slog.LevelDebug, logLevelFromEnv())

	t.Setenv(LevelEnvName(), "nonsense")
	assert.Equal(t, slog.LevelWarn, logLevelFromEnv())
}
