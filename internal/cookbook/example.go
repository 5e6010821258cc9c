// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cookbook

// ExampleYAML is a complete YAML cookbook, printed by the example command.
const ExampleYAML = `name: aqs
description: Roll restart or reboot the Analytics Query Service cluster
owner_team: data-platform
allowed_aliases: [aqs, aqs-canary]
batch_default: 1
batch_max: 4
grace_sleep: 30s
min_grace_sleep: 1s
max_failed: 0
valid_actions: [reboot, restart_daemons]
on_pre_failure: abort-batch
restart_daemons: [aqs]
ignore_restart_errors: false
reboot_timeout: 30m
pre_scripts:
  - name: check-health
    command: /usr/local/bin/check-aqs-health
post_scripts:
  - name: wait-ready
    upload:
      content: |
        #!/bin/sh
        for i in $(seq 1 30); do curl -sf localhost:7232/healthz && exit 0; sleep 2; done
        exit 1
      path: /tmp/rollbatch-wait-ready.sh
      mode: "0755"
pool:
  depool_command: depool
  repool_command: pool
  depool_sleep: 5s
  repool_sleep: 5s
  depool_threshold: 2
inventory:
  groups:
    - name: eqiad
      hosts: [aqs1010, aqs1011, aqs1012, aqs1013]
    - name: codfw
      hosts: [aqs2001, aqs2002, aqs2003]
  aliases:
    aqs: [eqiad, codfw]
    aqs-canary: [codfw]
`

// ExampleHCL is the HCL form of ExampleYAML.
const ExampleHCL = `name            = "aqs"
description     = "Roll restart or reboot the Analytics Query Service cluster"
owner_team      = "data-platform"
allowed_aliases = ["aqs", "aqs-canary"]
batch_default   = 1
batch_max       = 4
grace_sleep     = "30s"
min_grace_sleep = "1s"
valid_actions   = ["reboot", "restart_daemons"]
on_pre_failure  = "abort-batch"
restart_daemons = ["aqs"]
reboot_timeout  = "30m"

pre_script "check-health" {
  command = "/usr/local/bin/check-aqs-health"
}

post_script "wait-ready" {
  upload {
    source = "scripts/wait-ready.sh"
    path   = "/tmp/rollbatch-wait-ready.sh"
    mode   = "0755"
  }
}

pool {
  depool_command   = "depool"
  repool_command   = "pool"
  depool_sleep     = "5s"
  repool_sleep     = "5s"
  depool_threshold = 2
}

inventory {
  group "eqiad" {
    hosts = ["aqs1010", "aqs1011", "aqs1012", "aqs1013"]
  }

  group "codfw" {
    hosts = ["aqs2001", "aqs2002", "aqs2003"]
  }

  aliases = {
    aqs        = ["eqiad", "codfw"]
    aqs-canary = ["codfw"]
  }
}
`
