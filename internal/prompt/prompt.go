// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package prompt asks the operator to confirm a run before any host is touched.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
)

var (
	// ErrDeclined is returned when the operator answers no or aborts the prompt.
	ErrDeclined = errors.New("operation declined")
	// ErrTooManyAttempts is returned after repeated unrecognised answers.
	ErrTooManyAttempts = errors.New("too many invalid answers")
)

const maxAttempts = 3

// LineReader reads one line after showing a prompt.
type LineReader interface {
	Prompt(p string) (string, error)
}

// Answer is a parsed reply.
type Answer int

const (
	// AnswerInvalid is anything that is neither yes nor no.
	AnswerInvalid Answer = iota
	// AnswerYes confirms.
	AnswerYes
	// AnswerNo declines.
	AnswerNo
)

// ParseAnswer accepts y, yes, n and no in any case. An empty reply is invalid.
func ParseAnswer(s string) Answer {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return AnswerYes
	case "n", "no":
		return AnswerNo
	default:
		return AnswerInvalid
	}
}

// Confirm shows summary on w and asks question until a yes or no is given.
// It returns nil on yes and ErrDeclined on no or when the prompt is aborted.
func Confirm(r LineReader, w io.Writer, summary, question string) error {
	if summary != "" {
		fmt.Fprintln(w, summary) //nolint:errcheck
	}

	for range maxAttempts {
		input, err := r.Prompt(question + " [y/n] ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return ErrDeclined
			}

			return fmt.Errorf("error reading answer: %w", err)
		}

		switch ParseAnswer(input) {
		case AnswerYes:
			return nil
		case AnswerNo:
			return ErrDeclined
		default:
			fmt.Fprintln(w, "Please answer yes or no.") //nolint:errcheck
		}
	}

	return ErrTooManyAttempts
}

// ConfirmTerminal runs Confirm on an interactive terminal line editor.
func ConfirmTerminal(w io.Writer, summary, question string) error {
	line := liner.NewLiner()
	defer func() {
		_ = line.Close()
	}()

	line.SetCtrlCAborts(true)

	return Confirm(line, w, summary, question)
}
