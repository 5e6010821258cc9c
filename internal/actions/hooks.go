// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package actions

import (
	"context"
	"errors"
	"io/fs"

	"github.com/matt-FFFFFF/rollbatch/internal/ctxlog"
	"github.com/matt-FFFFFF/rollbatch/internal/remote"
	"github.com/matt-FFFFFF/rollbatch/internal/runbatch"
)

// DefaultScriptMode is the mode of uploaded scripts when none is given.
const DefaultScriptMode fs.FileMode = 0o755

var (
	// ErrEmptyScript is returned for a script with neither a command nor an upload.
	ErrEmptyScript = errors.New("script has no command and no upload")
	// ErrNoUploader is returned when a script needs an upload but no uploader is available.
	ErrNoUploader = errors.New("script upload requested but no uploader configured")
)

// Upload is a file copied to every host of the batch before its script runs.
type Upload struct {
	Content []byte
	Path    string
	Mode    fs.FileMode
}

// Script is a pre or post hook.
// It runs Command on the batch hosts. When Upload is set the file is copied first, and an
// empty Command runs the uploaded file.
type Script struct {
	Name    string
	Command string
	Upload  *Upload
}

// Label is the name shown in reports.
func (s Script) Label() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Command != "":
		return s.Command
	case s.Upload != nil:
		return s.Upload.Path
	default:
		return "script"
	}
}

func (s Script) command() string {
	if s.Command == "" && s.Upload != nil {
		return s.Upload.Path
	}

	return s.Command
}

// Hooks converts scripts into runbatch hooks. up may be nil when no script uploads.
func Hooks(exec remote.Executor, up remote.Uploader, scripts ...Script) []runbatch.Hook {
	hooks := make([]runbatch.Hook, len(scripts))

	for i, s := range scripts {
		hooks[i] = runbatch.Hook{
			Label: s.Label(),
			Run:   scriptFunc(exec, up, s),
		}
	}

	return hooks
}

func scriptFunc(exec remote.Executor, up remote.Uploader, s Script) runbatch.HookFunc {
	return func(ctx context.Context, req runbatch.Request) (runbatch.Outcome, error) {
		cmd := s.command()
		if cmd == "" {
			return runbatch.Outcome{}, ErrEmptyScript
		}

		if s.Upload != nil {
			if err := upload(ctx, up, req, *s.Upload); err != nil {
				return runbatch.Outcome{}, err
			}
		}

		return run(ctx, exec, req, req.Batch.Hosts, cmd)
	}
}

func upload(ctx context.Context, up remote.Uploader, req runbatch.Request, u Upload) error {
	if u.Mode == 0 {
		u.Mode = DefaultScriptMode
	}

	if req.DryRun {
		ctxlog.Info(ctx, "dry-run: would upload script", "hosts", req.Batch.Hosts, "path", u.Path)
		return nil
	}

	if up == nil {
		return ErrNoUploader
	}

	return up.Upload(ctx, req.Batch.Hosts, u.Content, u.Path, u.Mode)
}
