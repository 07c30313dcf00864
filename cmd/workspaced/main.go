/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

// workspaced is the multi-tenant workspace daemon. It serves the workspace
// API, records every mutation in per-tenant git history, and (when a sandbox
// boundary is configured) keeps tenant account ownership in sync over SSH.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/forgespace/forgespace/sandbox"
	"github.com/forgespace/forgespace/workspace"
	"github.com/forgespace/forgespace/workspace/branches"
	"github.com/forgespace/forgespace/workspace/gitstore"
	"github.com/forgespace/forgespace/workspace/pathguard"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		clog.FatalContextf(ctx, "creating data dir %s: %v", cfg.DataDir, err)
	}

	store := gitstore.New(
		gitstore.WithAuthor(cfg.CommitAuthorName, cfg.CommitAuthorEmail),
		gitstore.WithExcludes("/"+pathguard.BranchesDirName+"/"),
	)

	var accounts *sandbox.Manager
	opts := []workspace.Option{}
	if cfg.Sandbox.Host != "" {
		key, err := os.ReadFile(cfg.Sandbox.AdminKeyFile)
		if err != nil {
			clog.FatalContextf(ctx, "reading sandbox admin key: %v", err)
		}
		runner, err := sandbox.NewSSHRunner(cfg.Sandbox.Host, cfg.Sandbox.Port, cfg.Sandbox.AdminUser, key)
		if err != nil {
			clog.FatalContextf(ctx, "creating sandbox runner: %v", err)
		}
		sbOpts := []sandbox.Option{sandbox.WithSSHPort(cfg.Sandbox.SSHPort)}
		if cfg.Sandbox.HomeBase != "" {
			sbOpts = append(sbOpts, sandbox.WithHomeBase(cfg.Sandbox.HomeBase))
		}
		accounts = sandbox.NewManager(runner, sbOpts...)
		opts = append(opts, workspace.WithOwnershipSync(accounts))
		clog.InfoContextf(ctx, "Sandbox boundary enabled: %s@%s:%d", cfg.Sandbox.AdminUser, cfg.Sandbox.Host, cfg.Sandbox.Port)
	} else {
		clog.InfoContextf(ctx, "No sandbox boundary configured, account management disabled")
	}

	facade := workspace.New(cfg.DataDir, store, opts...)
	srv := newServer(facade, store, branches.New(store), accounts)

	api := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metrics := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		clog.InfoContextf(ctx, "Serving workspace API on %s", api.Addr)
		if err := api.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		clog.InfoContextf(ctx, "Serving metrics on %s", metrics.Addr)
		if err := metrics.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = metrics.Shutdown(shutdownCtx)
		return api.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}
}
