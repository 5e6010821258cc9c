// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package actions contains the built-in action handlers and the hooks that run around them.
//
// Every handler talks to hosts through a remote.Executor and honours Request.DryRun
// by logging what it would have done instead of doing it.
package actions
