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

	"github.com/hashicorp/go-getter/v2"
	"github.com/spf13/afero"
)

// ErrGetCookbook is returned when a cookbook cannot be fetched.
var ErrGetCookbook = errors.New("failed to get cookbook")

const (
	getterSubdirSeparator = "//"
	getterQuerySeparator  = "?"
	minGetterURLParts     = 3 // scheme, host and path
)

// Fetch returns the content and file name of the cookbook at url.
// A path that exists on FsFactory's filesystem is read directly; anything else
// goes through go-getter, so git, http and s3 sources work.
func Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("%w: empty location", ErrGetCookbook)
	}

	fs := FsFactory()

	if ok, _ := afero.Exists(fs, url); ok {
		data, err := afero.ReadFile(fs, url)
		if err != nil {
			return nil, "", errors.Join(ErrGetCookbook, ErrReadCookbook, err)
		}

		return data, filepath.Base(url), nil
	}

	return fetchRemote(ctx, url)
}

func fetchRemote(ctx context.Context, url string) ([]byte, string, error) {
	tmpDir, err := os.MkdirTemp("", "rollbatch-getter-*")
	if err != nil {
		return nil, "", errors.Join(ErrGetCookbook, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, "", errors.Join(ErrGetCookbook, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     url,
		Dst:     filepath.Join(tmpDir, "cookbook"),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	var fileName string

	// go-getter fetches directories, so split the file name off non-file URLs.
	// https://github.com/hashicorp/go-getter/issues/98
	if ok, err := getter.Detect(req, &getter.FileGetter{}); !ok || err != nil {
		if err != nil {
			return nil, "", errors.Join(ErrGetCookbook, err)
		}

		src, name := splitGetterURL(url)
		if src == "" || name == "" {
			return nil, "", fmt.Errorf("%w: invalid URL format: %s", ErrGetCookbook, url)
		}

		req.Src = src
		fileName = name
	}

	if fileName == "" {
		req.Src = filepath.Dir(url)
		fileName = filepath.Base(url)
	}

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, "", errors.Join(ErrGetCookbook, err)
	}

	data, err := os.ReadFile(filepath.Join(res.Dst, fileName))
	if err != nil {
		return nil, "", errors.Join(ErrGetCookbook, ErrReadCookbook, err)
	}

	return data, fileName, nil
}

// splitGetterURL splits a go-getter URL of the form src//dir/file?ref into
// the directory URL, keeping any query, and the file name.
func splitGetterURL(url string) (string, string) {
	parts := strings.Split(url, getterSubdirSeparator)
	if len(parts) < minGetterURLParts {
		return "", ""
	}

	last := parts[len(parts)-1]

	var query string

	if before, after, ok := strings.Cut(last, getterQuerySeparator); ok {
		last, query = before, after
	}

	if filepath.Clean(last) == filepath.Dir(last) {
		return "", ""
	}

	name := filepath.Base(last)
	parts[len(parts)-1] = filepath.Dir(last)

	if parts[len(parts)-1] == "." {
		parts = parts[:len(parts)-1]
	}

	src := strings.Join(parts, getterSubdirSeparator)

	if query != "" {
		src += getterQuerySeparator + query
	}

	return src, name
}
