// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package example

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matt-FFFFFF/rollbatch/internal/cookbook"
	"github.com/urfave/cli/v3"
)

const formatFlag = "format"

// NewCommand returns the command that prints an example cookbook.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "example",
		Usage: "Print an example cookbook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     formatFlag,
				Usage:    "Cookbook format: yaml or hcl",
				Value:    "yaml",
				OnlyOnce: true,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			var doc string

			switch format := strings.ToLower(cmd.String(formatFlag)); format {
			case "yaml", "yml":
				doc = cookbook.ExampleYAML
			case "hcl":
				doc = cookbook.ExampleHCL
			default:
				return cli.Exit(fmt.Sprintf("Invalid format: %s. Valid formats: yaml, hcl", format), 1)
			}

			if _, err := io.WriteString(cmd.Root().Writer, doc); err != nil {
				return cli.Exit("Failed to write example: "+err.Error(), 1)
			}

			return nil
		},
	}
}
