/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultBranch is the branch selector naming a tenant's main working copy.
const DefaultBranch = "default"

// BranchesDirName is the subdirectory of a tenant root holding branch
// working trees.
const BranchesDirName = "branches"

// ErrInvalidPath is returned when a relative path, tenant, or branch
// selector fails validation or would escape the tenant's workspace.
var ErrInvalidPath = errors.New("invalid path")

var (
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	relPattern  = regexp.MustCompile(`^[a-zA-Z0-9 ._/+-]*$`)
)

// Guard resolves tenant-relative virtual paths under a single data root.
type Guard struct {
	root string
}

// New returns a Guard rooted at the given data directory. The directory does
// not need to exist yet; resolution is lexical except for the branch
// existence check.
func New(dataRoot string) *Guard {
	return &Guard{root: filepath.Clean(dataRoot)}
}

// Root returns the configured data root.
func (g *Guard) Root() string {
	return g.root
}

// ValidName reports whether s is acceptable as a tenant identifier or
// branch name (alphanumeric and hyphen only).
func ValidName(s string) bool {
	return namePattern.MatchString(s)
}

// TenantRoot returns the absolute path of a tenant's default working copy.
func (g *Guard) TenantRoot(tenant string) (string, error) {
	if !ValidName(tenant) {
		return "", fmt.Errorf("%w: tenant %q", ErrInvalidPath, tenant)
	}
	return filepath.Join(g.root, tenant), nil
}

// ContextRoot returns the directory a tenant+branch scope resolves under:
// the tenant root for the default branch, or the branch's materialized
// working tree otherwise. The branch directory must already exist.
func (g *Guard) ContextRoot(tenant, branch string) (string, error) {
	root, err := g.TenantRoot(tenant)
	if err != nil {
		return "", err
	}
	if branch == "" || branch == DefaultBranch {
		return root, nil
	}
	if !ValidName(branch) {
		return "", fmt.Errorf("%w: branch %q", ErrInvalidPath, branch)
	}
	dir := filepath.Join(root, BranchesDirName, branch)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("%w: branch %q does not exist", ErrInvalidPath, branch)
	}
	return dir, nil
}

// Resolve validates rel and returns its absolute location under the
// tenant+branch scope. The result is guaranteed to be a descendant of the
// tenant's root.
func (g *Guard) Resolve(tenant, branch, rel string) (string, error) {
	root, err := g.ContextRoot(tenant, branch)
	if err != nil {
		return "", err
	}
	if !relPattern.MatchString(rel) {
		return "", fmt.Errorf("%w: %q contains disallowed characters", ErrInvalidPath, rel)
	}
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q contains a parent directory segment", ErrInvalidPath, rel)
		}
	}

	full := filepath.Join(root, filepath.Clean("/"+rel))
	if sub, err := filepath.Rel(root, full); err != nil || sub == ".." || strings.HasPrefix(sub, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the workspace", ErrInvalidPath, rel)
	}
	return full, nil
}
