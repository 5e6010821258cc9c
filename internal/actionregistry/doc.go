// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package actionregistry maps action names to their handlers.
// Handlers are registered when the registry is built; a cookbook's valid actions
// are checked against it before any host is touched.
package actionregistry
