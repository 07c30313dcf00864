/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// dialTimeout bounds connection establishment to the boundary host. No
// other timeout is enforced; a started command runs to completion.
const dialTimeout = 10 * time.Second

// RemoteCommandError reports a remote command that exited non-zero. The
// echoed command and captured stderr are included for operator visibility;
// credentials travel over stdin (RunWithInput), never on a command line, so
// both are safe to log and to surface to callers.
type RemoteCommandError struct {
	Command    string
	ExitStatus int
	Stderr     string
}

func (e *RemoteCommandError) Error() string {
	return fmt.Sprintf("remote command %q exited %d: %s", e.Command, e.ExitStatus, strings.TrimSpace(e.Stderr))
}

// CommandRunner executes one shell command in the boundary and returns its
// standard output. Implementations return *RemoteCommandError for non-zero
// exits and other errors for connection or authentication failures.
type CommandRunner interface {
	Run(ctx context.Context, command string) (string, error)

	// RunWithInput attaches stdin to the command. Secrets must be delivered
	// this way: a failing command's line and stderr end up in errors and
	// logs, stdin does not.
	RunWithInput(ctx context.Context, command, stdin string) (string, error)
}

// SSHRunner runs commands over SSH as the boundary's administrator.
type SSHRunner struct {
	addr   string
	config *ssh.ClientConfig
}

// NewSSHRunner builds a runner for the given host and port, authenticating
// as adminUser with the PEM-encoded private key.
func NewSSHRunner(host string, port int, adminUser string, privateKey []byte) (*SSHRunner, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parsing administrator key: %w", err)
	}
	return &SSHRunner{
		addr: net.JoinHostPort(host, fmt.Sprint(port)),
		config: &ssh.ClientConfig{
			User:            adminUser,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         dialTimeout,
		},
	}, nil
}

// Run opens a connection, executes one command, and returns its stdout.
func (r *SSHRunner) Run(ctx context.Context, command string) (string, error) {
	return r.run(ctx, command, "")
}

// RunWithInput is Run with the given text attached as the command's stdin.
func (r *SSHRunner) RunWithInput(ctx context.Context, command, stdin string) (string, error) {
	return r.run(ctx, command, stdin)
}

func (r *SSHRunner) run(ctx context.Context, command, stdin string) (string, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return "", fmt.Errorf("dialing %s: %w", r.addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, r.addr, r.config)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("ssh handshake with %s: %w", r.addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("opening session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != "" {
		session.Stdin = strings.NewReader(stdin)
	}

	if err := session.Run(command); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), &RemoteCommandError{
				Command:    command,
				ExitStatus: exitErr.ExitStatus(),
				Stderr:     stderr.String(),
			}
		}
		return "", fmt.Errorf("running command: %w", err)
	}
	return stdout.String(), nil
}

// shellQuote wraps s in single quotes, escaping embedded single quotes, so
// arbitrary text is safe to place on a remote command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
