/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package gitstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func mustCommit(t *testing.T, s *Store, dir, message string) *Commit {
	t.Helper()
	commit, err := s.CommitPending(context.Background(), dir, message)
	if err != nil {
		t.Fatalf("CommitPending(%q): %v", message, err)
	}
	if commit == nil {
		t.Fatalf("CommitPending(%q): expected a commit", message)
	}
	return commit
}

func TestEnsureInitializedIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()

	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized (second): %v", err)
	}

	writeFile(t, dir, "a.txt", "hello")
	mustCommit(t, s, dir, "Save file a.txt")

	// Re-running initialization must not disturb existing history.
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized (third): %v", err)
	}
	count, err := s.CommitCount(ctx, dir)
	if err != nil {
		t.Fatalf("CommitCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("CommitCount = %d, want 1", count)
	}
}

func TestCommitPendingSkipsCleanTree(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	writeFile(t, dir, "a.txt", "hello")
	mustCommit(t, s, dir, "Save file a.txt")

	// Saving identical content produces no pending changes and no commit.
	writeFile(t, dir, "a.txt", "hello")
	commit, err := s.CommitPending(ctx, dir, "Save file a.txt")
	if err != nil {
		t.Fatalf("CommitPending: %v", err)
	}
	if commit != nil {
		t.Fatalf("expected no commit for a clean tree, got %s", commit.Hash)
	}

	count, err := s.CommitCount(ctx, dir)
	if err != nil {
		t.Fatalf("CommitCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("CommitCount = %d, want 1", count)
	}
}

func TestCommitPendingRecordsAuthor(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(WithAuthor("Editor", "editor@example.com"))
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	writeFile(t, dir, "a.txt", "hello")
	commit := mustCommit(t, s, dir, "Save file a.txt")

	if commit.AuthorName != "Editor" || commit.AuthorEmail != "editor@example.com" {
		t.Fatalf("author = %s <%s>", commit.AuthorName, commit.AuthorEmail)
	}
	if commit.Subject != "Save file a.txt" {
		t.Fatalf("subject = %q", commit.Subject)
	}
	if commit.Date.IsZero() {
		t.Fatalf("expected a commit date")
	}
}

func TestListCommitsPagination(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	subjects := []string{"first", "second", "third", "fourth"}
	for _, subject := range subjects {
		writeFile(t, dir, "a.txt", subject)
		mustCommit(t, s, dir, subject)
	}

	page, err := s.ListCommits(ctx, dir, 1, 2)
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	got := []string{}
	for _, c := range page {
		got = append(got, c.Subject)
	}
	// Newest first, skipping one.
	if diff := cmp.Diff([]string{"third", "second"}, got); diff != "" {
		t.Fatalf("ListCommits page mismatch (-want +got):\n%s", diff)
	}

	all, err := s.ListCommits(ctx, dir, 0, 100)
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(all) != len(subjects) {
		t.Fatalf("ListCommits = %d entries, want %d", len(all), len(subjects))
	}

	none, err := s.ListCommits(ctx, dir, 100, 10)
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("ListCommits past the end = %d entries", len(none))
	}
}

func TestCommitFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	writeFile(t, dir, "keep.txt", "keep")
	writeFile(t, dir, "gone.txt", "gone")
	mustCommit(t, s, dir, "seed")

	writeFile(t, dir, "keep.txt", "changed")
	writeFile(t, dir, "new.txt", "new")
	if err := os.Remove(filepath.Join(dir, "gone.txt")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	commit := mustCommit(t, s, dir, "mutate")

	files, err := s.CommitFiles(ctx, dir, commit.Hash)
	if err != nil {
		t.Fatalf("CommitFiles: %v", err)
	}
	kinds := map[string]ChangeKind{}
	for _, fc := range files {
		kinds[fc.Path] = fc.Kind
	}
	want := map[string]ChangeKind{
		"keep.txt": Modified,
		"new.txt":  Added,
		"gone.txt": Deleted,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("CommitFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitFilesRename(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	writeFile(t, dir, "old-name.txt", "identical content on both sides\n")
	mustCommit(t, s, dir, "seed")

	if err := os.Rename(filepath.Join(dir, "old-name.txt"), filepath.Join(dir, "new-name.txt")); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	commit := mustCommit(t, s, dir, "rename")

	files, err := s.CommitFiles(ctx, dir, commit.Hash)
	if err != nil {
		t.Fatalf("CommitFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("CommitFiles = %+v, want a single rename entry", files)
	}
	want := FileChange{Path: "new-name.txt", Kind: Renamed, FromPath: "old-name.txt"}
	if diff := cmp.Diff(want, files[0]); diff != "" {
		t.Fatalf("rename mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitFilesFirstCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	writeFile(t, dir, "a.txt", "hello")
	commit := mustCommit(t, s, dir, "seed")

	// The first commit has no parent; everything diffs against empty.
	files, err := s.CommitFiles(ctx, dir, commit.Hash)
	if err != nil {
		t.Fatalf("CommitFiles: %v", err)
	}
	if len(files) != 1 || files[0].Path != "a.txt" || files[0].Kind != Added {
		t.Fatalf("CommitFiles = %+v", files)
	}
}

func TestFileBeforeAfter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	writeFile(t, dir, "a.txt", "v1")
	created := mustCommit(t, s, dir, "create")

	writeFile(t, dir, "a.txt", "v2")
	modified := mustCommit(t, s, dir, "modify")

	if err := os.Remove(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	deleted := mustCommit(t, s, dir, "delete")

	cases := []struct {
		name   string
		hash   string
		before string
		after  string
	}{
		{"created", created.Hash, "", "v1"},
		{"modified", modified.Hash, "v1", "v2"},
		{"deleted", deleted.Hash, "v2", ""},
	}
	for _, tc := range cases {
		versions, err := s.FileBeforeAfter(ctx, dir, tc.hash, "a.txt")
		if err != nil {
			t.Fatalf("%s: FileBeforeAfter: %v", tc.name, err)
		}
		if versions.Before != tc.before || versions.After != tc.after {
			t.Fatalf("%s: got %+v, want before=%q after=%q", tc.name, versions, tc.before, tc.after)
		}
	}
}

func TestFileAtHeadVsCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	writeFile(t, dir, "a.txt", "v1")
	first := mustCommit(t, s, dir, "create")

	writeFile(t, dir, "a.txt", "v3")
	mustCommit(t, s, dir, "update")

	versions, err := s.FileAtHeadVsCommit(ctx, dir, first.Hash, "a.txt")
	if err != nil {
		t.Fatalf("FileAtHeadVsCommit: %v", err)
	}
	if versions.Before != "v1" || versions.After != "v3" {
		t.Fatalf("FileAtHeadVsCommit = %+v", versions)
	}
}

func TestHistoryQueriesFailSoft(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	writeFile(t, dir, "a.txt", "v1")
	commit := mustCommit(t, s, dir, "create")

	const bogus = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

	files, err := s.CommitFiles(ctx, dir, bogus)
	if err != nil || len(files) != 0 {
		t.Fatalf("CommitFiles(bogus) = %v, %v", files, err)
	}
	versions, err := s.FileBeforeAfter(ctx, dir, bogus, "a.txt")
	if err != nil || versions != (FileVersions{}) {
		t.Fatalf("FileBeforeAfter(bogus) = %+v, %v", versions, err)
	}
	versions, err = s.FileBeforeAfter(ctx, dir, commit.Hash, "no-such-file")
	if err != nil || versions != (FileVersions{}) {
		t.Fatalf("FileBeforeAfter(missing file) = %+v, %v", versions, err)
	}
}

func TestQueriesOnEmptyRepository(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New()
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	count, err := s.CommitCount(ctx, dir)
	if err != nil || count != 0 {
		t.Fatalf("CommitCount = %d, %v", count, err)
	}
	commits, err := s.ListCommits(ctx, dir, 0, 10)
	if err != nil || len(commits) != 0 {
		t.Fatalf("ListCommits = %v, %v", commits, err)
	}
}

func TestCommitPendingRespectsExcludes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(WithExcludes("/branches/"))
	if err := s.EnsureInitialized(ctx, dir); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}

	writeFile(t, dir, "a.txt", "hello")
	writeFile(t, dir, "branches/feature-one/b.txt", "branch content")
	commit := mustCommit(t, s, dir, "seed")

	files, err := s.CommitFiles(ctx, dir, commit.Hash)
	if err != nil {
		t.Fatalf("CommitFiles: %v", err)
	}
	if len(files) != 1 || files[0].Path != "a.txt" {
		t.Fatalf("excluded paths were committed: %+v", files)
	}
}

func TestOpenMissingStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	// No repository was ever initialized here.
	if _, err := s.CommitCount(ctx, t.TempDir()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("CommitCount on bare dir: want ErrStoreUnavailable, got %v", err)
	}
}
