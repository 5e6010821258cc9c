// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package inventory

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

// ErrReadInventory is returned when an inventory file cannot be read or parsed.
var ErrReadInventory = errors.New("failed to read inventory file")

// FsFactory is a function that returns an afero filesystem.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Load reads a YAML inventory file.
func Load(path string) (Inventory, error) {
	var inv Inventory

	data, err := afero.ReadFile(FsFactory(), path)
	if err != nil {
		return inv, errors.Join(ErrReadInventory, err)
	}

	if err := yaml.UnmarshalWithOptions(data, &inv, yaml.DisallowUnknownField()); err != nil {
		return inv, fmt.Errorf("%w: %s: %w", ErrReadInventory, path, err)
	}

	return inv, nil
}
