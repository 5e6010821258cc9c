// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cookbook

import (
	"github.com/matt-FFFFFF/rollbatch/internal/inventory"
)

// Definition is the root of a cookbook document.
// Durations are strings accepted by time.ParseDuration, or a bare number of seconds.
type Definition struct {
	Name                string                `yaml:"name" hcl:"name"`
	Description         string                `yaml:"description" hcl:"description,optional"`
	OwnerTeam           string                `yaml:"owner_team" hcl:"owner_team,optional"`
	AllowedAliases      []string              `yaml:"allowed_aliases" hcl:"allowed_aliases,optional"`
	BatchDefault        int                   `yaml:"batch_default" hcl:"batch_default,optional"`
	BatchMax            int                   `yaml:"batch_max" hcl:"batch_max,optional"`
	GraceSleep          string                `yaml:"grace_sleep" hcl:"grace_sleep,optional"`
	MinGraceSleep       string                `yaml:"min_grace_sleep" hcl:"min_grace_sleep,optional"`
	MaxFailed           int                   `yaml:"max_failed" hcl:"max_failed,optional"`
	ValidActions        []string              `yaml:"valid_actions" hcl:"valid_actions"`
	OnPreFailure        string                `yaml:"on_pre_failure" hcl:"on_pre_failure,optional"`
	RestartDaemons      []string              `yaml:"restart_daemons" hcl:"restart_daemons,optional"`
	IgnoreRestartErrors bool                  `yaml:"ignore_restart_errors" hcl:"ignore_restart_errors,optional"`
	RebootTimeout       string                `yaml:"reboot_timeout" hcl:"reboot_timeout,optional"`
	RunCommand          string                `yaml:"run_command" hcl:"run_command,optional"`
	PreScripts          []ScriptDefinition    `yaml:"pre_scripts" hcl:"pre_script,block"`
	PostScripts         []ScriptDefinition    `yaml:"post_scripts" hcl:"post_script,block"`
	GroupEntry          *GroupEntryDefinition `yaml:"group_entry" hcl:"group_entry,block"`
	Pool                *PoolDefinition       `yaml:"pool" hcl:"pool,block"`
	Inventory           *inventory.Inventory  `yaml:"inventory" hcl:"inventory,block"`
	InventoryFile       string                `yaml:"inventory_file" hcl:"inventory_file,optional"`
}

// ScriptDefinition is a pre or post script. Exactly one of Command or Upload is usually set;
// with both, the upload happens first and Command runs afterwards.
type ScriptDefinition struct {
	Name    string            `yaml:"name" hcl:"name,label"`
	Command string            `yaml:"command" hcl:"command,optional"`
	Upload  *UploadDefinition `yaml:"upload" hcl:"upload,block"`
}

// UploadDefinition copies a local file, or inline content, to Path on every host.
type UploadDefinition struct {
	Source  string `yaml:"source" hcl:"source,optional"`
	Content string `yaml:"content" hcl:"content,optional"`
	Path    string `yaml:"path" hcl:"path"`
	Mode    string `yaml:"mode" hcl:"mode,optional"` // octal, e.g. "0755"
}

// GroupEntryDefinition holds commands run once per group before its first batch.
type GroupEntryDefinition struct {
	Hosts    []string `yaml:"hosts" hcl:"hosts,optional"`
	Commands []string `yaml:"commands" hcl:"commands"`
}

// PoolDefinition makes every batch leave a load balancer while the action runs.
type PoolDefinition struct {
	DepoolCommand   string `yaml:"depool_command" hcl:"depool_command"`
	RepoolCommand   string `yaml:"repool_command" hcl:"repool_command"`
	DepoolSleep     string `yaml:"depool_sleep" hcl:"depool_sleep,optional"`
	RepoolSleep     string `yaml:"repool_sleep" hcl:"repool_sleep,optional"`
	DepoolThreshold int    `yaml:"depool_threshold" hcl:"depool_threshold,optional"`
}
