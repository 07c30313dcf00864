/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package sandbox manages per-tenant operating-system accounts inside the
// external SSH boundary: the separately administered host where tenants log
// in directly to edit their files. A Manager provisions one account per
// tenant (lazily, idempotently), rotates passwords, uploads authorized
// public keys, and re-asserts file ownership after internal writes so the
// external channel's access rights stay correct.
//
// Every remote operation flows through a single execution primitive: open
// an SSH connection as the boundary's administrator, run one shell command,
// and fail with a RemoteCommandError unless it exits zero. Tenant
// identifiers are strictly validated and all other values are shell-quoted
// before they reach a command line, so tenant-controlled input cannot
// inject commands. Credentials are fed to commands over stdin and never
// appear in a command line, whose text surfaces in errors and logs.
package sandbox
