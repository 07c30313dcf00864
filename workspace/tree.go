/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/forgespace/forgespace/workspace/pathguard"
)

// Entry is one file or directory in a workspace tree listing.
type Entry struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Dir       bool      `json:"dir"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modTime"`
	MediaType string    `json:"mediaType,omitempty"`
}

// infrastructure entries hidden from tree listings: history metadata, OS
// metadata files, dependency caches, and the branch working trees nested
// under a tenant root.
var excludedEntries = map[string]bool{
	".git":                    true,
	".DS_Store":               true,
	"node_modules":            true,
	pathguard.BranchesDirName: true,
}

func entryFor(root, abs string, info fs.FileInfo) *Entry {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		rel = info.Name()
	}
	entry := &Entry{
		Path:    filepath.ToSlash(rel),
		Name:    info.Name(),
		Dir:     info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if !info.IsDir() {
		if mediaType := mime.TypeByExtension(filepath.Ext(info.Name())); mediaType != "" {
			entry.MediaType = mediaType
		} else {
			entry.MediaType = "application/octet-stream"
		}
	}
	return entry
}

// ListTree recursively lists the entries under a tenant+branch scope,
// excluding infrastructure entries. An uninitialized workspace lists empty.
func (f *Facade) ListTree(ctx context.Context, tenant, branch string) ([]*Entry, error) {
	root, err := f.guard.ContextRoot(tenant, branch)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("inspecting workspace root: %w", err)
	}

	var entries []*Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if excludedEntries[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, entryFor(root, path, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace tree: %w", err)
	}
	return entries, nil
}
