/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package workspace composes path guarding, the history store, and sandbox
// ownership sync into the operations callers actually perform on tenant
// file trees: read and save files, delete files or directories, create
// directories, and list a tree. Every mutation is committed to the
// tenant's history, has the tenant's external account ownership
// re-applied, and is announced to registered change listeners in
// registration order.
package workspace
