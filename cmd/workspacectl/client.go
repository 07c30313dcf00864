/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/forgespace/forgespace/sandbox"
	"github.com/forgespace/forgespace/workspace"
	"github.com/forgespace/forgespace/workspace/gitstore"
)

// client is a thin wrapper over the workspaced HTTP API.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: http.DefaultClient,
	}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) tree(ctx context.Context, tenant, branch string) ([]*workspace.Entry, error) {
	var entries []*workspace.Entry
	path := fmt.Sprintf("/api/v1/workspaces/%s/tree?branch=%s", tenant, branch)
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

type commitPage struct {
	Total   int                `json:"total"`
	Commits []*gitstore.Commit `json:"commits"`
}

func (c *client) commits(ctx context.Context, tenant, branch string, offset, limit int) (*commitPage, error) {
	var page commitPage
	path := fmt.Sprintf("/api/v1/workspaces/%s/commits?branch=%s&offset=%d&limit=%d", tenant, branch, offset, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *client) commitFiles(ctx context.Context, tenant, branch, hash string) ([]gitstore.FileChange, error) {
	var files []gitstore.FileChange
	path := fmt.Sprintf("/api/v1/workspaces/%s/commits/%s/files?branch=%s", tenant, hash, branch)
	if err := c.do(ctx, http.MethodGet, path, nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *client) branches(ctx context.Context, tenant string) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/api/v1/workspaces/"+tenant+"/branches", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *client) createBranch(ctx context.Context, tenant, name, source string) error {
	body := map[string]string{"name": name, "source": source}
	return c.do(ctx, http.MethodPost, "/api/v1/workspaces/"+tenant+"/branches", body, nil)
}

func (c *client) provision(ctx context.Context, tenant string) (*sandbox.Account, error) {
	var account sandbox.Account
	if err := c.do(ctx, http.MethodPost, "/api/v1/workspaces/"+tenant+"/account", nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
