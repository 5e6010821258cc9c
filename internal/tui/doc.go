// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a real-time Terminal User Interface (TUI) for following a
// rollout. It displays a live tree of host groups, their batches and the steps run
// against each batch, together with the current grace sleep and overall progress.
//
// The TUI consumes the progress events emitted by the orchestrator, so it can be
// plugged in next to any other progress.Reporter.
package tui
