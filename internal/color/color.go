// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package color

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/term"
)

// Code is an SGR parameter.
type Code int

const (
	// NoColor is the environment variable that disables color output.
	NoColor = "NO_COLOR"
	// ForceColor is the environment variable that forces color output.
	ForceColor = "FORCE_COLOR"

	prefix = "\033["
	suffix = "m"
	reset  = "\033[0m"
)

// Attributes.
const (
	Reset Code = 0
	Bold  Code = 1
	Faint Code = 2
)

// Foreground colours.
const (
	FgRed     Code = 31
	FgGreen   Code = 32
	FgYellow  Code = 33
	FgBlue    Code = 34
	FgMagenta Code = 35
	FgCyan    Code = 36
	FgWhite   Code = 37

	FgHiBlack   Code = 90
	FgHiRed     Code = 91
	FgHiMagenta Code = 95
	FgHiWhite   Code = 97
)

var enabled atomic.Bool

func init() {
	enabled.Store(detect())
}

// Enabled reports whether colour output is on.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled overrides terminal detection and returns the previous value.
func SetEnabled(v bool) bool {
	return enabled.Swap(v)
}

// ControlString returns the escape sequence for the codes, or "" when colour is off.
func ControlString(codes ...Code) string {
	if !Enabled() || len(codes) == 0 {
		return ""
	}

	return sequence(codes)
}

// Colorize wraps str in the codes followed by a reset.
func Colorize(str string, codes ...Code) string {
	if !Enabled() || len(codes) == 0 {
		return str
	}

	sb := strings.Builder{}
	sb.Grow(len(str) + len(reset) + len(codes)*4 + len(prefix))
	sb.WriteString(sequence(codes))
	sb.WriteString(str)
	sb.WriteString(reset)

	return sb.String()
}

func sequence(codes []Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(int(c))
	}

	return prefix + strings.Join(parts, ";") + suffix
}

func detect() bool {
	if os.Getenv(NoColor) != "" {
		return false
	}

	if os.Getenv(ForceColor) != "" {
		return true
	}

	return term.IsTerminal(int(os.Stdout.Fd()))
}
