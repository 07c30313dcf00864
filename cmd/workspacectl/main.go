/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

// workspacectl is an operator CLI for a running workspaced instance: inspect
// tenant trees, page through mutation history, and manage branches and
// sandbox accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/chainguard-dev/clog"
)

const usage = `usage: workspacectl [-server URL] <command> [args]

commands:
  tree <tenant> [branch]                 list the files in a workspace
  log <tenant> [branch]                  show mutation history
  show <tenant> <hash> [branch]          show the files changed by a commit
  branches <tenant>                      list branches
  branch <tenant> <name> [source]        create a branch
  provision <tenant>                     provision the tenant's sandbox account
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := flag.String("server", envOr("WORKSPACED_URL", "http://localhost:8080"), "workspaced base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c := newClient(*server)
	if err := run(ctx, c, args[0], args[1:]); err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, c *client, command string, args []string) error {
	switch command {
	case "tree":
		return runTree(ctx, c, args)
	case "log":
		return runLog(ctx, c, args)
	case "show":
		return runShow(ctx, c, args)
	case "branches":
		return runBranches(ctx, c, args)
	case "branch":
		return runBranch(ctx, c, args)
	case "provision":
		return runProvision(ctx, c, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func tenantAndBranch(args []string) (string, string, error) {
	if len(args) < 1 {
		return "", "", fmt.Errorf("tenant required")
	}
	branch := ""
	if len(args) > 1 {
		branch = args[1]
	}
	return args[0], branch, nil
}

func runTree(ctx context.Context, c *client, args []string) error {
	tenant, branch, err := tenantAndBranch(args)
	if err != nil {
		return err
	}
	entries, err := c.tree(ctx, tenant, branch)
	if err != nil {
		return err
	}
	table := newTable([]string{"Path", "Size", "Type", "Modified"}, os.Stdout)
	for _, e := range entries {
		kind := e.MediaType
		if e.Dir {
			kind = "dir"
		}
		_ = table.Append([]string{e.Path, strconv.FormatInt(e.Size, 10), kind, e.ModTime.Format("2006-01-02 15:04:05")})
	}
	return table.Render()
}

func runLog(ctx context.Context, c *client, args []string) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	offset := fs.Int("offset", 0, "commits to skip")
	limit := fs.Int("limit", 20, "maximum commits to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tenant, branch, err := tenantAndBranch(fs.Args())
	if err != nil {
		return err
	}
	page, err := c.commits(ctx, tenant, branch, *offset, *limit)
	if err != nil {
		return err
	}
	table := newTable([]string{"Hash", "Date", "Author", "Subject"}, os.Stdout)
	for _, commit := range page.Commits {
		_ = table.Append([]string{
			commit.Hash[:12],
			commit.Date.Format("2006-01-02 15:04:05"),
			commit.AuthorName,
			commit.Subject,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Printf("%d of %d commits\n", len(page.Commits), page.Total)
	return nil
}

func runShow(ctx context.Context, c *client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("tenant and commit hash required")
	}
	branch := ""
	if len(args) > 2 {
		branch = args[2]
	}
	files, err := c.commitFiles(ctx, args[0], branch, args[1])
	if err != nil {
		return err
	}
	table := newTable([]string{"Change", "Path"}, os.Stdout)
	for _, f := range files {
		path := f.Path
		if f.FromPath != "" {
			path = f.FromPath + " -> " + f.Path
		}
		_ = table.Append([]string{string(f.Kind), path})
	}
	return table.Render()
}

func runBranches(ctx context.Context, c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("tenant required")
	}
	names, err := c.branches(ctx, args[0])
	if err != nil {
		return err
	}
	table := newTable([]string{"Branch"}, os.Stdout)
	for _, name := range names {
		_ = table.Append([]string{name})
	}
	return table.Render()
}

func runBranch(ctx context.Context, c *client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("tenant and branch name required")
	}
	source := ""
	if len(args) > 2 {
		source = args[2]
	}
	if err := c.createBranch(ctx, args[0], args[1], source); err != nil {
		return err
	}
	fmt.Printf("created branch %s\n", args[1])
	return nil
}

func runProvision(ctx context.Context, c *client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("tenant required")
	}
	account, err := c.provision(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("account: %s\nport: %d\n", account.Name, account.Port)
	if account.Password != "" {
		fmt.Printf("password: %s\n", account.Password)
	}
	return nil
}
