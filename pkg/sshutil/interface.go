package sshutil

import (
	"context"
	"io"
)

// Auth modes accepted in Target.AuthMode.
const (
	AuthPassword   = "password"
	AuthPrivateKey = "privatekey"
)

// Target is one SSH endpoint plus the credentials to log in with.
// Host may be an alias from ~/.ssh/config.
type Target struct {
	Host       string
	Port       int
	User       string
	AuthMode   string
	Password   string
	PrivateKey string
	Passphrase string
}

// PTY describes the pseudo-terminal requested for a shell.
type PTY struct {
	Term string
	Cols int
	Rows int
}

// Terminal is an interactive remote shell. Writes go to the shell's stdin;
// Output yields the merged stdout/stderr stream until the shell exits.
//
// Both the real Shell and the fakes in sshutil/testing satisfy this interface,
// so the relay can be tested without a reachable SSH server.
type Terminal interface {
	io.Writer

	// Output returns the shell's output stream. It reaches EOF when the shell ends.
	Output() io.Reader

	// Resize changes the remote window size.
	Resize(cols, rows int) error

	// Wait blocks until the shell exits.
	Wait() error

	// Close tears the shell and its connection down.
	Close() error
}

// Dialer opens terminals.
type Dialer interface {
	Open(ctx context.Context, target Target, pty PTY) (Terminal, error)
}
