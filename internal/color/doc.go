// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color decides whether terminal output should be coloured and wraps strings in ANSI codes.
// Colour is disabled when NO_COLOR is set, forced when FORCE_COLOR is set, and otherwise
// follows whether stdout is a terminal (golang.org/x/term).
package color
