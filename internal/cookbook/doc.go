// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cookbook loads cookbook definitions and assembles them into an orchestrator.
//
// A cookbook is a YAML or HCL document declaring the allow-listed actions, batch bounds,
// pre and post scripts and the inventory of one service.
// Values given on the command line override the cookbook through Overrides.
package cookbook
