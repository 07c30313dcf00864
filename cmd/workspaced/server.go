/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/chainguard-dev/clog"

	"github.com/forgespace/forgespace/sandbox"
	"github.com/forgespace/forgespace/workspace"
	"github.com/forgespace/forgespace/workspace/branches"
	"github.com/forgespace/forgespace/workspace/gitstore"
	"github.com/forgespace/forgespace/workspace/pathguard"
)

// AccessChecker gates every request that touches tenant data. The default
// allows everything; deployments install their own check.
type AccessChecker func(r *http.Request, tenant string) bool

// server is the HTTP glue over the workspace core. It carries no logic of
// its own beyond decoding requests and mapping the core's error taxonomy to
// status codes.
type server struct {
	facade   *workspace.Facade
	store    *gitstore.Store
	branches *branches.Manager
	accounts *sandbox.Manager
	access   AccessChecker
}

func newServer(facade *workspace.Facade, store *gitstore.Store, branchMgr *branches.Manager, accounts *sandbox.Manager) *server {
	return &server{
		facade:   facade,
		store:    store,
		branches: branchMgr,
		accounts: accounts,
		access:   func(*http.Request, string) bool { return true },
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workspaces/{tenant}/files/{path...}", s.tenantHandler(s.handleReadFile))
	mux.HandleFunc("PUT /api/v1/workspaces/{tenant}/files/{path...}", s.tenantHandler(s.handleSaveFile))
	mux.HandleFunc("DELETE /api/v1/workspaces/{tenant}/files/{path...}", s.tenantHandler(s.handleDelete))
	mux.HandleFunc("POST /api/v1/workspaces/{tenant}/dirs/{path...}", s.tenantHandler(s.handleCreateDir))
	mux.HandleFunc("GET /api/v1/workspaces/{tenant}/tree", s.tenantHandler(s.handleTree))
	mux.HandleFunc("POST /api/v1/workspaces/{tenant}/branches", s.tenantHandler(s.handleCreateBranch))
	mux.HandleFunc("GET /api/v1/workspaces/{tenant}/branches", s.tenantHandler(s.handleListBranches))
	mux.HandleFunc("GET /api/v1/workspaces/{tenant}/commits", s.tenantHandler(s.handleListCommits))
	mux.HandleFunc("GET /api/v1/workspaces/{tenant}/commits/{hash}/files", s.tenantHandler(s.handleCommitFiles))
	mux.HandleFunc("GET /api/v1/workspaces/{tenant}/commits/{hash}/file", s.tenantHandler(s.handleCommitFile))
	mux.HandleFunc("POST /api/v1/workspaces/{tenant}/account", s.tenantHandler(s.handleProvision))
	mux.HandleFunc("POST /api/v1/workspaces/{tenant}/account/password", s.tenantHandler(s.handleRotatePassword))
	mux.HandleFunc("POST /api/v1/workspaces/{tenant}/account/keys", s.tenantHandler(s.handleAuthorizeKey))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// tenantHandler extracts the tenant path value and applies the access gate
// before delegating.
func (s *server) tenantHandler(h func(w http.ResponseWriter, r *http.Request, tenant string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := r.PathValue("tenant")
		if !s.access(r, tenant) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h(w, r, tenant)
	}
}

// statusFor maps the core's error taxonomy to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pathguard.ErrInvalidPath),
		errors.Is(err, branches.ErrInvalidBranchName),
		errors.Is(err, sandbox.ErrInvalidTenant):
		return http.StatusBadRequest
	case workspace.IsNotExist(err),
		errors.Is(err, sandbox.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, branches.ErrBranchAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, sandbox.ErrBoundaryUnavailable),
		errors.Is(err, gitstore.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		clog.FromContext(r.Context()).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) handleReadFile(w http.ResponseWriter, r *http.Request, tenant string) {
	rel := r.PathValue("path")
	content, err := s.facade.ReadFile(r.Context(), tenant, r.URL.Query().Get("branch"), rel)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if mediaType := mime.TypeByExtension(path.Ext(rel)); mediaType != "" {
		w.Header().Set("Content-Type", mediaType)
	}
	_, _ = w.Write(content)
}

func (s *server) handleSaveFile(w http.ResponseWriter, r *http.Request, tenant string) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	branch := r.URL.Query().Get("branch")
	rel := r.PathValue("path")
	if err := s.facade.SaveFile(r.Context(), tenant, branch, rel, content, r.URL.Query().Get("message")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request, tenant string) {
	branch := r.URL.Query().Get("branch")
	rel := r.PathValue("path")
	message := r.URL.Query().Get("message")

	var err error
	if r.URL.Query().Get("dir") == "true" {
		err = s.facade.DeleteDirectory(r.Context(), tenant, branch, rel, message)
	} else {
		err = s.facade.DeleteFile(r.Context(), tenant, branch, rel, message)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCreateDir(w http.ResponseWriter, r *http.Request, tenant string) {
	entry, err := s.facade.CreateDirectory(r.Context(), tenant, r.URL.Query().Get("branch"), r.PathValue("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, entry)
}

func (s *server) handleTree(w http.ResponseWriter, r *http.Request, tenant string) {
	entries, err := s.facade.ListTree(r.Context(), tenant, r.URL.Query().Get("branch"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []*workspace.Entry{}
	}
	writeJSON(w, entries)
}

func (s *server) handleCreateBranch(w http.ResponseWriter, r *http.Request, tenant string) {
	var req struct {
		Name   string `json:"name"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tenantRoot, err := s.facade.Guard().TenantRoot(tenant)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.branches.Create(r.Context(), tenantRoot, req.Name, req.Source); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *server) handleListBranches(w http.ResponseWriter, r *http.Request, tenant string) {
	tenantRoot, err := s.facade.Guard().TenantRoot(tenant)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	names, err := s.branches.List(r.Context(), tenantRoot)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, names)
}

// scopeRoot resolves the directory history queries run against.
func (s *server) scopeRoot(r *http.Request, tenant string) (string, error) {
	return s.facade.Guard().ContextRoot(tenant, r.URL.Query().Get("branch"))
}

func intQuery(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return fallback
}

func (s *server) handleListCommits(w http.ResponseWriter, r *http.Request, tenant string) {
	root, err := s.scopeRoot(r, tenant)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset := intQuery(r, "offset", 0)
	limit := intQuery(r, "limit", 20)

	commits, err := s.store.ListCommits(r.Context(), root, offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	total, err := s.store.CommitCount(r.Context(), root)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if commits == nil {
		commits = []*gitstore.Commit{}
	}
	writeJSON(w, map[string]any{
		"total":   total,
		"commits": commits,
	})
}

func (s *server) handleCommitFiles(w http.ResponseWriter, r *http.Request, tenant string) {
	root, err := s.scopeRoot(r, tenant)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	files, err := s.store.CommitFiles(r.Context(), root, r.PathValue("hash"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if files == nil {
		files = []gitstore.FileChange{}
	}
	writeJSON(w, files)
}

func (s *server) handleCommitFile(w http.ResponseWriter, r *http.Request, tenant string) {
	root, err := s.scopeRoot(r, tenant)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	file := r.URL.Query().Get("path")
	hash := r.PathValue("hash")

	var versions gitstore.FileVersions
	if r.URL.Query().Get("against") == "head" {
		versions, err = s.store.FileAtHeadVsCommit(r.Context(), root, hash, file)
	} else {
		versions, err = s.store.FileBeforeAfter(r.Context(), root, hash, file)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, versions)
}

func (s *server) requireAccounts(w http.ResponseWriter) bool {
	if s.accounts == nil {
		http.Error(w, "sandbox boundary not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *server) handleProvision(w http.ResponseWriter, r *http.Request, tenant string) {
	if !s.requireAccounts(w) {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	account, err := s.accounts.Provision(r.Context(), tenant, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, account)
}

func (s *server) handleRotatePassword(w http.ResponseWriter, r *http.Request, tenant string) {
	if !s.requireAccounts(w) {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		http.Error(w, "password required", http.StatusBadRequest)
		return
	}
	if err := s.accounts.RotatePassword(r.Context(), tenant, req.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAuthorizeKey uploads a public key, auto-provisioning the account on
// first use.
func (s *server) handleAuthorizeKey(w http.ResponseWriter, r *http.Request, tenant string) {
	if !s.requireAccounts(w) {
		return
	}
	var req struct {
		PublicKey string `json:"publicKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PublicKey == "" {
		http.Error(w, "publicKey required", http.StatusBadRequest)
		return
	}
	if _, err := s.accounts.Provision(r.Context(), tenant, ""); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.accounts.AuthorizeKey(r.Context(), tenant, req.PublicKey); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
