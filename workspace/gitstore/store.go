/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package gitstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrStoreUnavailable is returned when the history store backing a
// directory cannot be opened.
var ErrStoreUnavailable = errors.New("history store unavailable")

const (
	defaultAuthorName  = "Forgespace"
	defaultAuthorEmail = "forgespace@localhost"
)

// Store performs history operations against directories. The zero value is
// not usable; construct with New.
type Store struct {
	authorName  string
	authorEmail string
	excludes    []gitignore.Pattern

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithAuthor sets the commit author identity recorded on every commit the
// store creates.
func WithAuthor(name, email string) Option {
	return func(s *Store) {
		s.authorName = name
		s.authorEmail = email
	}
}

// WithExcludes adds gitignore patterns applied to staging and status in
// every tracked directory. The workspace layer uses this to keep branch
// working trees (which live inside the tenant root) out of the main
// repository's history.
func WithExcludes(patterns ...string) Option {
	return func(s *Store) {
		for _, p := range patterns {
			s.excludes = append(s.excludes, gitignore.ParsePattern(p, nil))
		}
	}
}

// New constructs a Store.
func New(opts ...Option) *Store {
	s := &Store{
		authorName:  defaultAuthorName,
		authorEmail: defaultAuthorEmail,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockFor returns the commit mutex for a directory, creating it on first
// use. At most one committer at a time may run per directory.
func (s *Store) lockFor(dir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[dir]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[dir] = lock
	}
	return lock
}

// EnsureInitialized creates a repository inside dir when none exists.
// Calling it on an already-initialized directory is a logged no-op.
func (s *Store) EnsureInitialized(ctx context.Context, dir string) error {
	if _, err := git.PlainOpen(dir); err == nil {
		clog.FromContext(ctx).Debugf("Repository at %s already initialized", dir)
		return nil
	} else if !errors.Is(err, git.ErrRepositoryNotExists) {
		return fmt.Errorf("%w: opening %s: %v", ErrStoreUnavailable, dir, err)
	}

	clog.FromContext(ctx).Infof("Initializing repository at %s", dir)
	if _, err := git.PlainInit(dir, false); err != nil {
		return fmt.Errorf("initializing repository at %s: %w", dir, err)
	}
	return nil
}

func (s *Store) open(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrStoreUnavailable, dir, err)
	}
	return repo, nil
}

func (s *Store) signature() *object.Signature {
	return &object.Signature{
		Name:  s.authorName,
		Email: s.authorEmail,
		When:  time.Now(),
	}
}

// CommitPending stages every addition, modification, and deletion under dir
// and commits them with the given message. When the working tree is clean
// no commit is created and (nil, nil) is returned.
func (s *Store) CommitPending(ctx context.Context, dir, message string) (*Commit, error) {
	lock := s.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(dir)
	if err != nil {
		return nil, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	worktree.Excludes = append(worktree.Excludes, s.excludes...)

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("staging changes: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("getting worktree status: %w", err)
	}
	if status.IsClean() {
		clog.FromContext(ctx).Debugf("No pending changes in %s, skipping commit", dir)
		return nil, nil
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{Author: s.signature()})
	if err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("reading committed object: %w", err)
	}

	clog.FromContext(ctx).Infof("Committed %s in %s: %s", hash.String()[:8], dir, message)
	return commitRecord(commit), nil
}

// InitialCommit creates an empty commit with the given message. It is used
// to give a freshly initialized repository a resolvable tip so branches can
// be forked from it before any file has been saved.
func (s *Store) InitialCommit(ctx context.Context, dir, message string) error {
	lock := s.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(dir)
	if err != nil {
		return err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	if _, err := worktree.Commit(message, &git.CommitOptions{
		Author:            s.signature(),
		AllowEmptyCommits: true,
	}); err != nil {
		return fmt.Errorf("creating initial commit: %w", err)
	}
	return nil
}
