// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries lifecycle events out of a running rollout.
// The orchestrator reports run, group, batch, stage and sleep events to a Reporter.
// The TUI and the verbose console listener consume them; a NullReporter discards them.
package progress
