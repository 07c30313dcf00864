/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"

	"github.com/forgespace/forgespace/workspace/gitstore"
	"github.com/forgespace/forgespace/workspace/pathguard"
)

// OwnershipSyncer re-applies a tenant's external account ownership to one
// path under the tenant's home tree. sandbox.Manager implements it.
type OwnershipSyncer interface {
	ReassertOwnership(ctx context.Context, tenant, rel string) error
}

// Facade performs workspace mutations: resolve, write, commit, reassert
// ownership, notify.
type Facade struct {
	guard *pathguard.Guard
	store *gitstore.Store
	owner OwnershipSyncer

	notifier notifier
}

// Option configures a Facade.
type Option func(*Facade)

// WithOwnershipSync installs the sandbox syncer invoked after every save.
// Without it, writes simply skip the reassert step (useful for tests and
// deployments without an external boundary).
func WithOwnershipSync(o OwnershipSyncer) Option {
	return func(f *Facade) {
		f.owner = o
	}
}

// New constructs a Facade over the given data root and history store.
func New(dataRoot string, store *gitstore.Store, opts ...Option) *Facade {
	f := &Facade{
		guard: pathguard.New(dataRoot),
		store: store,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Guard returns the facade's path guard, for callers that only need
// resolution.
func (f *Facade) Guard() *pathguard.Guard {
	return f.guard
}

// Notify registers a change listener and returns its deregistration
// function. Listeners run synchronously, in registration order.
func (f *Facade) Notify(l Listener) func() {
	return f.notifier.register(l)
}

// SaveFile writes content to rel under the tenant+branch scope, commits the
// change, re-asserts the tenant's external ownership on the written path,
// and emits a save event. An empty message commits as "Save file <rel>".
func (f *Facade) SaveFile(ctx context.Context, tenant, branch, rel string, content []byte, message string) error {
	abs, root, err := f.resolve(tenant, branch, rel)
	if err != nil {
		return err
	}

	previous := ""
	if b, err := os.ReadFile(abs); err == nil {
		previous = string(b)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating parent directories for %s: %w", rel, err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}

	if message == "" {
		message = "Save file " + rel
	}
	if err := f.commit(ctx, root, message); err != nil {
		return err
	}

	f.reassert(ctx, tenant, abs)
	mutationCounter.WithLabelValues(string(EventSave)).Inc()
	f.notifier.emit(ctx, Event{
		Tenant:          tenant,
		Path:            abs,
		RelativePath:    rel,
		PreviousContent: previous,
		NewContent:      string(content),
		Type:            EventSave,
		BasePath:        root,
	})
	return nil
}

// ReadFile returns the current content of rel under the tenant+branch
// scope.
func (f *Facade) ReadFile(ctx context.Context, tenant, branch, rel string) ([]byte, error) {
	abs, _, err := f.resolve(tenant, branch, rel)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return content, nil
}

// DeleteFile removes a file, commits the deletion, and emits a delete
// event. A file that does not exist fails before any commit is attempted.
func (f *Facade) DeleteFile(ctx context.Context, tenant, branch, rel string, message string) error {
	abs, root, err := f.resolve(tenant, branch, rel)
	if err != nil {
		return err
	}
	if abs == root {
		return fmt.Errorf("%w: refusing to delete workspace root", pathguard.ErrInvalidPath)
	}

	previous, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("reading %s before delete: %w", rel, err)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("deleting %s: %w", rel, err)
	}

	if message == "" {
		message = "Delete file " + rel
	}
	if err := f.commit(ctx, root, message); err != nil {
		return err
	}

	mutationCounter.WithLabelValues(string(EventDelete)).Inc()
	f.notifier.emit(ctx, Event{
		Tenant:          tenant,
		Path:            abs,
		RelativePath:    rel,
		PreviousContent: string(previous),
		Type:            EventDelete,
		BasePath:        root,
	})
	return nil
}

// DeleteDirectory removes a directory tree, commits the deletion, and
// emits a deleteDir event.
func (f *Facade) DeleteDirectory(ctx context.Context, tenant, branch, rel string, message string) error {
	abs, root, err := f.resolve(tenant, branch, rel)
	if err != nil {
		return err
	}
	if abs == root {
		return fmt.Errorf("%w: refusing to delete workspace root", pathguard.ErrInvalidPath)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("inspecting %s before delete: %w", rel, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", rel)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("deleting directory %s: %w", rel, err)
	}

	if message == "" {
		message = "Delete directory " + rel
	}
	if err := f.commit(ctx, root, message); err != nil {
		return err
	}

	mutationCounter.WithLabelValues(string(EventDeleteDir)).Inc()
	f.notifier.emit(ctx, Event{
		Tenant:       tenant,
		Path:         abs,
		RelativePath: rel,
		Type:         EventDeleteDir,
		BasePath:     root,
	})
	return nil
}

// CreateDirectory creates rel (and any missing parents) under the
// tenant+branch scope. Empty directories are not trackable, so no commit is
// made; the resulting entry is returned for reporting.
func (f *Facade) CreateDirectory(ctx context.Context, tenant, branch, rel string) (*Entry, error) {
	abs, root, err := f.resolve(tenant, branch, rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", rel, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("inspecting created directory: %w", err)
	}

	f.reassert(ctx, tenant, abs)
	return entryFor(root, abs, info), nil
}

// resolve validates and resolves rel, returning the absolute path and the
// scope root it lives under.
func (f *Facade) resolve(tenant, branch, rel string) (abs, root string, err error) {
	root, err = f.guard.ContextRoot(tenant, branch)
	if err != nil {
		return "", "", err
	}
	abs, err = f.guard.Resolve(tenant, branch, rel)
	if err != nil {
		return "", "", err
	}
	return abs, root, nil
}

// commit initializes the scope's repository when needed and commits all
// pending changes.
func (f *Facade) commit(ctx context.Context, root, message string) error {
	if err := f.store.EnsureInitialized(ctx, root); err != nil {
		return err
	}
	commit, err := f.store.CommitPending(ctx, root, message)
	if err != nil {
		return err
	}
	if commit != nil {
		commitCounter.Inc()
	}
	return nil
}

// reassert re-applies external account ownership to abs, expressed relative
// to the tenant's home. Failures are logged and counted; the write stands.
func (f *Facade) reassert(ctx context.Context, tenant, abs string) {
	if f.owner == nil {
		return
	}
	tenantRoot, err := f.guard.TenantRoot(tenant)
	if err != nil {
		return
	}
	rel, err := filepath.Rel(tenantRoot, abs)
	if err != nil {
		clog.FromContext(ctx).Warnf("Cannot express %s relative to tenant home: %v", abs, err)
		return
	}
	if err := f.owner.ReassertOwnership(ctx, tenant, filepath.ToSlash(rel)); err != nil {
		ownershipSyncFailures.Inc()
		clog.FromContext(ctx).Warnf("Ownership reassert failed for %s/%s: %v", tenant, rel, err)
	}
}

// IsNotExist reports whether err stems from a missing file or directory,
// for callers mapping facade errors to responses.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
