/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package pathguard resolves caller-supplied relative paths into absolute
// filesystem locations inside a tenant's workspace. Every resolution is
// validated against an allow-list of characters and checked for parent
// directory traversal, so a resolved path is always a descendant of the
// configured data root. Resolution is pure apart from a single stat used to
// verify that a requested branch directory has actually been materialized.
package pathguard
