// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cookbook

import (
	"context"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()

	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	stub := gostub.Stub(&FsFactory, func() afero.Fs { return fs })
	t.Cleanup(stub.Reset)

	return fs
}

func TestParseYAML_Example(t *testing.T) {
	def, err := ParseYAML([]byte(ExampleYAML))
	require.NoError(t, err)
	require.NoError(t, def.Validate())

	assert.Equal(t, "aqs", def.Name)
	assert.Equal(t, []string{"reboot", "restart_daemons"}, def.ValidActions)
	assert.Equal(t, 4, def.BatchMax)
	assert.Equal(t, "30s", def.GraceSleep)
	require.Len(t, def.PreScripts, 1)
	assert.Equal(t, "/usr/local/bin/check-aqs-health", def.PreScripts[0].Command)
	require.Len(t, def.PostScripts, 1)
	require.NotNil(t, def.PostScripts[0].Upload)
	assert.Contains(t, def.PostScripts[0].Upload.Content, "healthz")
	require.NotNil(t, def.Pool)
	assert.Equal(t, 2, def.Pool.DepoolThreshold)
	require.NotNil(t, def.Inventory)
	assert.Equal(t, []string{"eqiad", "codfw"}, def.Inventory.Aliases["aqs"])
}

func TestParseHCL_Example(t *testing.T) {
	yamlDef, err := ParseYAML([]byte(ExampleYAML))
	require.NoError(t, err)

	def, err := ParseHCL([]byte(ExampleHCL), "aqs.hcl")
	require.NoError(t, err)
	require.NoError(t, def.Validate())

	assert.Equal(t, yamlDef.Name, def.Name)
	assert.Equal(t, yamlDef.ValidActions, def.ValidActions)
	assert.Equal(t, yamlDef.AllowedAliases, def.AllowedAliases)
	assert.Equal(t, yamlDef.BatchMax, def.BatchMax)
	assert.Equal(t, yamlDef.GraceSleep, def.GraceSleep)
	assert.Equal(t, yamlDef.RestartDaemons, def.RestartDaemons)
	assert.Equal(t, *yamlDef.Pool, *def.Pool)
	assert.Equal(t, yamlDef.PreScripts, def.PreScripts)
	assert.Equal(t, "wait-ready", def.PostScripts[0].Name)
	assert.Equal(t, "scripts/wait-ready.sh", def.PostScripts[0].Upload.Source)
	assert.Equal(t, yamlDef.Inventory.Groups, def.Inventory.Groups)
	assert.Equal(t, yamlDef.Inventory.Aliases, def.Inventory.Aliases)
}

func TestParseHCL_Env(t *testing.T) {
	t.Setenv("ROLLBATCH_TEST_DAEMON", "cassandra")

	def, err := ParseHCL([]byte(`
name            = "cassandra"
valid_actions   = ["restart_daemons"]
restart_daemons = [env.ROLLBATCH_TEST_DAEMON, "aqs"]
`), "c.hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{"cassandra", "aqs"}, def.RestartDaemons)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		filename string
		expected error
	}{
		{"yaml unknown field", "name: x\nvalid_action: [reboot]\n", "x.yaml", ErrInvalidYaml},
		{"yaml bad syntax", "name: [x\n", "x.yml", ErrInvalidYaml},
		{"hcl syntax", "name = \n", "x.hcl", ErrInvalidHcl},
		{"hcl missing required", "description = \"x\"\n", "x.HCL", ErrInvalidHcl},
		{"hcl unknown block", "name = \"x\"\nvalid_actions = []\nbogus {}\n", "x.hcl", ErrInvalidHcl},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def, err := Parse([]byte(tc.data), tc.filename)
			require.ErrorIs(t, err, tc.expected)
			assert.Nil(t, def)
		})
	}
}

func TestLoad(t *testing.T) {
	memFs(t, map[string]string{
		"/srv/cookbooks/aqs.hcl":  ExampleHCL,
		"/srv/cookbooks/aqs.yaml": ExampleYAML,
	})

	for _, path := range []string{"/srv/cookbooks/aqs.hcl", "/srv/cookbooks/aqs.yaml"} {
		def, err := Load(context.Background(), path)
		require.NoError(t, err, path)
		assert.Equal(t, "aqs", def.Name)
	}
}

func TestFetch(t *testing.T) {
	memFs(t, map[string]string{"/cb/test.yaml": "name: test\n"})

	data, name, err := Fetch(t.Context(), "/cb/test.yaml")
	require.NoError(t, err)
	assert.Equal(t, "test.yaml", name)
	assert.Equal(t, "name: test\n", string(data))

	_, _, err = Fetch(t.Context(), "")
	require.ErrorIs(t, err, ErrGetCookbook)

	_, _, err = Fetch(t.Context(), "git::http://notexist.invalid//cookbook.yaml")
	require.ErrorIs(t, err, ErrGetCookbook)
}

func TestSplitGetterURL(t *testing.T) {
	tests := []struct {
		url      string
		src      string
		fileName string
	}{
		{
			url:      "git::https://github.com/org/cookbooks//aqs/cookbook.yaml?ref=v1.2.0",
			src:      "git::https://github.com/org/cookbooks//aqs?ref=v1.2.0",
			fileName: "cookbook.yaml",
		},
		{
			url:      "git::https://github.com/org/cookbooks//cookbook.hcl",
			src:      "git::https://github.com/org/cookbooks",
			fileName: "cookbook.hcl",
		},
		{
			url: "https://example.com/cookbook.yaml",
		},
		{
			url: "git::https://github.com/org/cookbooks//",
		},
	}

	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			src, fileName := splitGetterURL(tc.url)
			assert.Equal(t, tc.src, src)
			assert.Equal(t, tc.fileName, fileName)
		})
	}
}
