// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package remote runs commands on, and copies files to, the hosts of one batch.
//
// The SSH implementation connects to every host of the batch concurrently, bounded by
// the configured parallelism, runs the commands in order on each host and stops at the
// first failing command for that host. Per-host failures are collected into one error.
package remote
