/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T, handler http.HandlerFunc) *client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return newClient(ts.URL)
}

func TestCommitsRequest(t *testing.T) {
	c := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/workspaces/acme/commits", r.URL.Path)
		assert.Equal(t, "feature-x", r.URL.Query().Get("branch"))
		assert.Equal(t, "5", r.URL.Query().Get("offset"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": 42,
			"commits": []map[string]any{
				{"hash": "abc123", "subject": "Save file a.txt"},
			},
		})
	})

	page, err := c.commits(context.Background(), "acme", "feature-x", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 42, page.Total)
	require.Len(t, page.Commits, 1)
	assert.Equal(t, "Save file a.txt", page.Commits[0].Subject)
}

func TestCreateBranchRequest(t *testing.T) {
	c := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/workspaces/acme/branches", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "feature-x", req["name"])
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.createBranch(context.Background(), "acme", "feature-x", ""))
}

func TestErrorResponseSurfaced(t *testing.T) {
	c := fakeAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "branch already exists", http.StatusConflict)
	})

	err := c.createBranch(context.Background(), "acme", "feature-x", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch already exists")
	assert.Contains(t, err.Error(), "409")
}
