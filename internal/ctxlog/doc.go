// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a *slog.Logger on a context.Context.
//
// The default logger writes to stderr through PrettyHandler, a console handler that prints
// a timestamp, a coloured level and the message followed by the record attributes as indented JSON.
// Operators can switch to plain JSON lines for shipping the log of a maintenance run elsewhere.
//
// The level is read from an environment variable derived from the executable name,
// e.g. ROLLBATCH_LOG_LEVEL for the rollbatch binary, and defaults to WARN.
package ctxlog
