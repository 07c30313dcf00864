/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package gitstore treats a plain directory as a history-tracked store. A
// Store lazily initializes a git repository inside the directory, commits
// all pending changes in one step (skipping the commit entirely when the
// working tree is clean), and answers read-only history queries: paginated
// logs, per-commit change lists, and before/after file content.
//
// Read queries fail soft: asking about a commit or a file revision that does
// not exist yields empty results rather than an error, because absence is a
// normal answer for history lookups. Only structural failures (the
// repository cannot be opened at all) are surfaced, wrapped in
// ErrStoreUnavailable.
//
// CommitPending holds a per-directory mutex across stage, status, and
// commit, so concurrent writers to the same tree serialize on the commit
// step and each mutation lands in exactly one commit.
package gitstore
