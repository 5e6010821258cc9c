// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runbatch runs one action over host groups, batch by batch.
//
// Each group is partitioned into fixed-size batches. Per batch the orchestrator runs the
// pre hooks, the action and the post hooks, then sleeps the grace period before the next
// batch of the run. Failures are recorded as outcomes and never abort the rollout, except
// where the PreFailurePolicy or MaxFailedBatches say otherwise. The outcomes are reduced
// into a RunResult whose Status is the process exit code.
package runbatch
