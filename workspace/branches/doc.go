/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package branches materializes named branches as isolated, independently
// writable working trees under a tenant's branches directory. Each branch
// directory is a local clone of the tenant's main repository pinned at the
// source branch's tip, with its own branch pointer checked out, so edits in
// one branch are invisible to every other branch and to the default working
// copy.
package branches
