/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/chainguard-dev/clog"
)

var (
	// ErrBoundaryUnavailable is returned when the boundary host cannot be
	// reached for an operation that requires it.
	ErrBoundaryUnavailable = errors.New("sandbox boundary unavailable")

	// ErrAccountNotFound is returned when an operation requires an
	// existing account and the tenant has none.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidTenant is returned when a tenant identifier is not safe to
	// use as an account name.
	ErrInvalidTenant = errors.New("invalid tenant identifier")
)

// tenantPattern matches tenant identifiers acceptable as OS account names.
var tenantPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// defaultHomeBase is where tenant home directories live in the boundary.
const defaultHomeBase = "/users/apps"

// Account describes a tenant's external-access account. Password is set
// only when the account was freshly created by the call returning it.
type Account struct {
	Name     string `json:"name"`
	Port     int    `json:"port"`
	Password string `json:"password,omitempty"`
}

// Manager is a typed client for account operations in the boundary.
type Manager struct {
	runner   CommandRunner
	sshPort  int
	homeBase string
}

// Option configures a Manager.
type Option func(*Manager)

// WithSSHPort sets the port reported in Account results (the port tenants
// connect to, not necessarily the administrative port).
func WithSSHPort(port int) Option {
	return func(m *Manager) { m.sshPort = port }
}

// WithHomeBase overrides the base directory for tenant homes.
func WithHomeBase(base string) Option {
	return func(m *Manager) { m.homeBase = base }
}

// NewManager constructs a Manager over the given command runner.
func NewManager(runner CommandRunner, opts ...Option) *Manager {
	m := &Manager{
		runner:   runner,
		sshPort:  22,
		homeBase: defaultHomeBase,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func validTenant(tenant string) error {
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("%w: %q", ErrInvalidTenant, tenant)
	}
	return nil
}

func (m *Manager) home(tenant string) string {
	return path.Join(m.homeBase, tenant)
}

// IsReachable probes the boundary with a no-op command. Failures are
// logged, not returned: callers use this as a precondition check.
func (m *Manager) IsReachable(ctx context.Context) bool {
	if _, err := m.runner.Run(ctx, "true"); err != nil {
		clog.FromContext(ctx).Warnf("Sandbox boundary unreachable: %v", err)
		return false
	}
	return true
}

// AccountExists probes for the tenant's account. Absence is a normal false,
// not an error.
func (m *Manager) AccountExists(ctx context.Context, tenant string) (bool, error) {
	if err := validTenant(tenant); err != nil {
		return false, err
	}
	if _, err := m.runner.Run(ctx, "id -u "+shellQuote(tenant)); err != nil {
		var rce *RemoteCommandError
		if errors.As(err, &rce) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Provision ensures the tenant has an account. When the account already
// exists its connection info is returned unchanged, with no password and no
// side effects. Otherwise the account is created with its home directory, a
// password (generated when none is supplied), and an owner-only .ssh
// directory; the password is returned exactly once, here.
func (m *Manager) Provision(ctx context.Context, tenant, password string) (*Account, error) {
	if err := validTenant(tenant); err != nil {
		return nil, err
	}
	if !m.IsReachable(ctx) {
		return nil, ErrBoundaryUnavailable
	}

	exists, err := m.AccountExists(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if exists {
		clog.FromContext(ctx).Debugf("Account %s already provisioned", tenant)
		return &Account{Name: tenant, Port: m.sshPort}, nil
	}

	if password == "" {
		if password, err = GeneratePassword(); err != nil {
			return nil, fmt.Errorf("generating password: %w", err)
		}
	}

	home := m.home(tenant)
	clog.FromContext(ctx).Infof("Provisioning account %s with home %s", tenant, home)

	// Two racing provisions can both pass the existence probe; the loser's
	// useradd fails and is surfaced for the caller to retry as
	// already-exists.
	if _, err := m.runner.Run(ctx, fmt.Sprintf("useradd -m -d %s -s /bin/bash %s", shellQuote(home), shellQuote(tenant))); err != nil {
		return nil, fmt.Errorf("creating account %s: %w", tenant, err)
	}
	if err := m.setPassword(ctx, tenant, password); err != nil {
		return nil, err
	}

	sshDir := path.Join(home, ".ssh")
	setup := fmt.Sprintf("mkdir -p %[1]s && chmod 700 %[1]s && chown %[2]s:%[2]s %[1]s",
		shellQuote(sshDir), shellQuote(tenant))
	if _, err := m.runner.Run(ctx, setup); err != nil {
		return nil, fmt.Errorf("preparing .ssh for %s: %w", tenant, err)
	}

	return &Account{Name: tenant, Port: m.sshPort, Password: password}, nil
}

// setPassword feeds the credential to chpasswd on stdin. It must never be
// placed on the command line: a failing command echoes its line into errors
// and logs.
func (m *Manager) setPassword(ctx context.Context, tenant, password string) error {
	if _, err := m.runner.RunWithInput(ctx, "chpasswd", tenant+":"+password+"\n"); err != nil {
		return fmt.Errorf("setting password for %s: %w", tenant, err)
	}
	return nil
}

// RotatePassword replaces the tenant's password. The account must exist.
func (m *Manager) RotatePassword(ctx context.Context, tenant, newPassword string) error {
	if err := validTenant(tenant); err != nil {
		return err
	}
	if !m.IsReachable(ctx) {
		return ErrBoundaryUnavailable
	}
	exists, err := m.AccountExists(ctx, tenant)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, tenant)
	}
	return m.setPassword(ctx, tenant, newPassword)
}

// Delete removes the tenant's account and its files.
func (m *Manager) Delete(ctx context.Context, tenant string) error {
	if err := validTenant(tenant); err != nil {
		return err
	}
	exists, err := m.AccountExists(ctx, tenant)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, tenant)
	}
	clog.FromContext(ctx).Infof("Deleting account %s", tenant)
	if _, err := m.runner.Run(ctx, "userdel -r "+shellQuote(tenant)); err != nil {
		return fmt.Errorf("deleting account %s: %w", tenant, err)
	}
	return nil
}

// AuthorizeKey appends the trimmed public key to the tenant's authorized
// key list, then fixes the list's ownership and restricts it to owner
// read/write. The account must exist.
func (m *Manager) AuthorizeKey(ctx context.Context, tenant, publicKey string) error {
	if err := validTenant(tenant); err != nil {
		return err
	}
	key := strings.TrimSpace(publicKey)
	if key == "" || strings.ContainsAny(key, "\n\r") {
		return fmt.Errorf("malformed public key")
	}
	exists, err := m.AccountExists(ctx, tenant)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, tenant)
	}

	authorized := path.Join(m.home(tenant), ".ssh", "authorized_keys")
	command := fmt.Sprintf("printf '%%s\\n' %s >> %s && chown %s:%s %s && chmod 600 %s",
		shellQuote(key), shellQuote(authorized),
		shellQuote(tenant), shellQuote(tenant), shellQuote(authorized),
		shellQuote(authorized))
	if _, err := m.runner.Run(ctx, command); err != nil {
		return fmt.Errorf("authorizing key for %s: %w", tenant, err)
	}
	return nil
}

// ReassertOwnership re-applies the tenant account's ownership to one path
// under its home tree. It is invoked after every internal write; callers
// treat failures as best-effort (the write itself stands).
func (m *Manager) ReassertOwnership(ctx context.Context, tenant, rel string) error {
	if err := validTenant(tenant); err != nil {
		return err
	}
	clean := path.Clean("/" + strings.TrimSpace(rel))
	if clean == "/" {
		clean = ""
	}
	target := m.home(tenant) + clean
	command := fmt.Sprintf("chown %[1]s:%[1]s %[2]s", shellQuote(tenant), shellQuote(target))
	if _, err := m.runner.Run(ctx, command); err != nil {
		return fmt.Errorf("reasserting ownership of %s: %w", target, err)
	}
	return nil
}
