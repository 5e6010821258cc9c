// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cookbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
)

const hclFileExt = ".hcl"

var (
	// ErrInvalidYaml is returned when a YAML cookbook cannot be decoded.
	ErrInvalidYaml = errors.New("invalid YAML")
	// ErrInvalidHcl is returned when an HCL cookbook cannot be parsed or decoded.
	ErrInvalidHcl = errors.New("invalid HCL")
	// ErrReadCookbook is returned when a cookbook file cannot be read.
	ErrReadCookbook = errors.New("failed to read cookbook")
)

// FsFactory is a function that returns an afero filesystem.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Load fetches the cookbook at url and parses it.
// The format is chosen by the file extension: ".hcl" is HCL, anything else YAML.
func Load(ctx context.Context, url string) (*Definition, error) {
	data, name, err := Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	ctxlog.Debug(ctx, "loaded cookbook", "url", url, "file", name, "bytes", len(data))

	return Parse(data, name)
}

// Parse decodes a cookbook. filename selects the format and is used in error messages.
func Parse(data []byte, filename string) (*Definition, error) {
	if strings.EqualFold(filepath.Ext(filename), hclFileExt) {
		return ParseHCL(data, filename)
	}

	return ParseYAML(data)
}

// ParseYAML decodes a YAML cookbook. Unknown fields are an error.
func ParseYAML(data []byte) (*Definition, error) {
	def := &Definition{}

	if err := yaml.UnmarshalWithOptions(data, def, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidYaml, yaml.FormatError(err, false, true))
	}

	return def, nil
}

// ParseHCL decodes an HCL cookbook. Expressions may read environment variables as env.NAME.
func ParseHCL(data []byte, filename string) (*Definition, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errors.Join(ErrInvalidHcl, diags)
	}

	def := &Definition{}

	if diags := gohcl.DecodeBody(file.Body, evalContext(), def); diags.HasErrors() {
		return nil, errors.Join(ErrInvalidHcl, diags)
	}

	return def, nil
}

func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !hclsyntax.ValidIdentifier(k) {
			continue
		}

		env[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}
