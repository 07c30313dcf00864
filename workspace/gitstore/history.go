/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package gitstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// ChangeKind classifies how a path changed within one commit.
type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
	Renamed  ChangeKind = "renamed"
	Copied   ChangeKind = "copied"
)

// Commit is one immutable history entry.
type Commit struct {
	Hash        string    `json:"hash"`
	Date        time.Time `json:"date"`
	Subject     string    `json:"subject"`
	AuthorName  string    `json:"authorName"`
	AuthorEmail string    `json:"authorEmail"`
}

// FileChange is one changed path within a commit, relative to its parent.
type FileChange struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
	// FromPath is set for renames: the path the file had before.
	FromPath string `json:"fromPath,omitempty"`
}

// FileVersions holds a file's content on either side of a comparison.
// Empty content means the file did not exist at that point.
type FileVersions struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

func commitRecord(c *object.Commit) *Commit {
	subject := c.Message
	for i := 0; i < len(subject); i++ {
		if subject[i] == '\n' {
			subject = subject[:i]
			break
		}
	}
	return &Commit{
		Hash:        c.Hash.String(),
		Date:        c.Author.When,
		Subject:     subject,
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
	}
}

// emptyHistory reports whether err means the repository simply has no
// commits yet (unborn HEAD).
func emptyHistory(err error) bool {
	return errors.Is(err, plumbing.ErrReferenceNotFound)
}

// CommitCount returns the number of commits reachable from the current tip.
// A repository with no commits yet counts zero.
func (s *Store) CommitCount(ctx context.Context, dir string) (int, error) {
	repo, err := s.open(dir)
	if err != nil {
		return 0, err
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		if emptyHistory(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading log for %s: %w", dir, err)
	}
	defer iter.Close()

	count := 0
	if err := iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	}); err != nil {
		return 0, fmt.Errorf("counting commits in %s: %w", dir, err)
	}
	return count, nil
}

// ListCommits returns commits newest-first, skipping offset entries and
// returning at most limit. A non-positive limit returns nothing.
func (s *Store) ListCommits(ctx context.Context, dir string, offset, limit int) ([]*Commit, error) {
	repo, err := s.open(dir)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		if emptyHistory(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading log for %s: %w", dir, err)
	}
	defer iter.Close()

	var commits []*Commit
	seen := 0
	if err := iter.ForEach(func(c *object.Commit) error {
		seen++
		if seen <= offset {
			return nil
		}
		if len(commits) >= limit {
			return storer.ErrStop
		}
		commits = append(commits, commitRecord(c))
		return nil
	}); err != nil {
		return nil, fmt.Errorf("listing commits in %s: %w", dir, err)
	}
	return commits, nil
}

// lookupCommit resolves a commit by hex hash. An unknown or malformed hash
// yields (nil, nil): absence is a normal answer for history queries.
func (s *Store) lookupCommit(repo *git.Repository, hash string) (*object.Commit, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading commit %s: %w", hash, err)
	}
	return commit, nil
}

// CommitFiles returns the changed-path list for one commit versus its
// parent. An unknown hash yields an empty list.
func (s *Store) CommitFiles(ctx context.Context, dir, hash string) ([]FileChange, error) {
	repo, err := s.open(dir)
	if err != nil {
		return nil, err
	}
	commit, err := s.lookupCommit(repo, hash)
	if err != nil || commit == nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", hash, err)
	}

	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("reading parent of %s: %w", hash, err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("reading parent tree of %s: %w", hash, err)
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diffing %s against parent: %w", hash, err)
	}

	files := make([]FileChange, 0, len(changes))
	for _, change := range changes {
		files = append(files, classifyChange(change))
	}
	return files, nil
}

// classifyChange maps a tree diff entry to a FileChange. Rename detection
// (enabled via DefaultDiffTreeOptions) yields entries with differing From
// and To names; go-git does not report copies, but the kind exists so the
// API covers the full git change vocabulary.
func classifyChange(change *object.Change) FileChange {
	from, to := change.From.Name, change.To.Name
	switch {
	case from != "" && to != "" && from != to:
		return FileChange{Path: to, Kind: Renamed, FromPath: from}
	case from == "":
		return FileChange{Path: to, Kind: Added}
	case to == "":
		return FileChange{Path: from, Kind: Deleted}
	default:
		return FileChange{Path: to, Kind: Modified}
	}
}

// contentAt returns a file's content at a commit, or empty when the file
// did not exist there.
func contentAt(commit *object.Commit, file string) (string, error) {
	f, err := commit.File(file)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s at %s: %w", file, commit.Hash, err)
	}
	content, err := f.Contents()
	if err != nil {
		return "", fmt.Errorf("reading %s at %s: %w", file, commit.Hash, err)
	}
	return content, nil
}

// FileBeforeAfter returns a file's content immediately before hash (at its
// parent) and at hash itself. Either side is empty when the file did not
// exist at that point; an unknown hash yields both sides empty.
func (s *Store) FileBeforeAfter(ctx context.Context, dir, hash, file string) (FileVersions, error) {
	repo, err := s.open(dir)
	if err != nil {
		return FileVersions{}, err
	}
	commit, err := s.lookupCommit(repo, hash)
	if err != nil || commit == nil {
		return FileVersions{}, err
	}

	var versions FileVersions
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return FileVersions{}, fmt.Errorf("reading parent of %s: %w", hash, err)
		}
		if versions.Before, err = contentAt(parent, file); err != nil {
			return FileVersions{}, err
		}
	}
	if versions.After, err = contentAt(commit, file); err != nil {
		return FileVersions{}, err
	}
	return versions, nil
}

// FileAtHeadVsCommit returns a file's content at hash (Before) and at the
// branch tip (After), with the same empty-on-absence semantics as
// FileBeforeAfter.
func (s *Store) FileAtHeadVsCommit(ctx context.Context, dir, hash, file string) (FileVersions, error) {
	repo, err := s.open(dir)
	if err != nil {
		return FileVersions{}, err
	}
	commit, err := s.lookupCommit(repo, hash)
	if err != nil || commit == nil {
		return FileVersions{}, err
	}

	var versions FileVersions
	if versions.Before, err = contentAt(commit, file); err != nil {
		return FileVersions{}, err
	}

	head, err := repo.Head()
	if err != nil {
		if emptyHistory(err) {
			return versions, nil
		}
		return FileVersions{}, fmt.Errorf("resolving tip of %s: %w", dir, err)
	}
	tip, err := repo.CommitObject(head.Hash())
	if err != nil {
		return FileVersions{}, fmt.Errorf("reading tip commit: %w", err)
	}
	if versions.After, err = contentAt(tip, file); err != nil {
		return FileVersions{}, err
	}
	return versions, nil
}
