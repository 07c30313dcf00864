/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package branches

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/forgespace/forgespace/workspace/gitstore"
	"github.com/forgespace/forgespace/workspace/pathguard"
)

var (
	// ErrInvalidBranchName is returned when a branch name contains
	// characters outside alphanumerics and hyphen.
	ErrInvalidBranchName = errors.New("invalid branch name")

	// ErrBranchAlreadyExists is returned when the target branch directory
	// already exists.
	ErrBranchAlreadyExists = errors.New("branch already exists")

	// ErrBranchCreationFailed wraps underlying git failures during branch
	// creation; the original diagnostic is carried in the message.
	ErrBranchCreationFailed = errors.New("branch creation failed")
)

// Manager creates and enumerates branch working trees for tenant
// workspaces.
type Manager struct {
	store *gitstore.Store
}

// New constructs a Manager backed by the given history store.
func New(store *gitstore.Store) *Manager {
	return &Manager{store: store}
}

// Create materializes a new branch working tree named name under
// tenantRoot, forked from source's tip. An empty or "default" source forks
// from the main working copy. The returned path is the branch directory.
func (m *Manager) Create(ctx context.Context, tenantRoot, name, source string) (string, error) {
	if !pathguard.ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	}

	target := filepath.Join(tenantRoot, pathguard.BranchesDirName, name)
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("%w: %q", ErrBranchAlreadyExists, name)
	}

	// The main repository must exist with a resolvable tip before anything
	// can be forked from it, even when no file has ever been saved.
	if err := m.store.EnsureInitialized(ctx, tenantRoot); err != nil {
		return "", err
	}
	if err := m.ensureTip(ctx, tenantRoot); err != nil {
		return "", err
	}

	srcPath := tenantRoot
	if source != "" && source != pathguard.DefaultBranch {
		if !pathguard.ValidName(source) {
			return "", fmt.Errorf("%w: source %q", ErrInvalidBranchName, source)
		}
		srcPath = filepath.Join(tenantRoot, pathguard.BranchesDirName, source)
		if _, err := os.Stat(srcPath); err != nil {
			return "", fmt.Errorf("%w: source branch %q not found", ErrBranchCreationFailed, source)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating branches directory: %w", err)
	}

	clog.FromContext(ctx).Infof("Creating branch %s from %s", name, srcPath)
	repo, err := git.PlainClone(target, false, &git.CloneOptions{URL: srcPath})
	if err != nil {
		os.RemoveAll(target)
		return "", fmt.Errorf("%w: cloning source: %v", ErrBranchCreationFailed, err)
	}

	if err := checkoutFreshBranch(repo, name); err != nil {
		os.RemoveAll(target)
		return "", fmt.Errorf("%w: %v", ErrBranchCreationFailed, err)
	}
	return target, nil
}

// ensureTip gives the main repository an initial commit when its HEAD is
// still unborn, so clones have something to fork from.
func (m *Manager) ensureTip(ctx context.Context, tenantRoot string) error {
	repo, err := git.PlainOpen(tenantRoot)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", gitstore.ErrStoreUnavailable, tenantRoot, err)
	}
	if _, err := repo.Head(); err == nil {
		return nil
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf("resolving tip of %s: %w", tenantRoot, err)
	}
	return m.store.InitialCommit(ctx, tenantRoot, "Initialize workspace")
}

// checkoutFreshBranch points a new branch reference at the clone's current
// tip and checks it out, binding the working tree to its own branch pointer.
func checkoutFreshBranch(repo *git.Repository, name string) error {
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolving clone tip: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(name)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, head.Hash())); err != nil {
		return fmt.Errorf("setting branch reference: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: refName}); err != nil {
		return fmt.Errorf("checking out branch: %w", err)
	}
	return nil
}

// List enumerates branch names under tenantRoot. The branches directory is
// created empty when absent, so listing a workspace with no branches yet is
// not an error.
func (m *Manager) List(ctx context.Context, tenantRoot string) ([]string, error) {
	root := filepath.Join(tenantRoot, pathguard.BranchesDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating branches directory: %w", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
