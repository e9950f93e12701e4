package sshutil

import (
	"io"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/nexusnav/nexusnav/internal/errors"
)

// DefaultTerm is the TERM requested for relay shells.
const DefaultTerm = "xterm-256color"

// Shell is an interactive login shell on a PTY. It owns the client it was
// opened on; closing the shell closes the connection.
type Shell struct {
	client  *Client
	session *ssh.Session
	stdin   io.WriteCloser
	out     *io.PipeReader

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
}

// OpenShell requests a PTY and starts the user's shell. Stdout and stderr
// are merged into Output.
func (c *Client) OpenShell(pty PTY) (*Shell, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}

	term := pty.Term
	if term == "" {
		term = DefaultTerm
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(term, pty.Rows, pty.Cols, modes); err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to allocate PTY for shell",
			"The remote host may not support pseudo-terminals.")
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH, "Failed to open shell input", "")
	}
	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to start shell",
			"Check if the user has shell access on the remote host.")
	}

	s := &Shell{
		client:  c,
		session: session,
		stdin:   stdin,
		out:     pr,
		done:    make(chan struct{}),
	}
	go func() {
		s.waitErr = session.Wait()
		pw.Close()
		close(s.done)
	}()
	return s, nil
}

// Write sends input to the shell.
func (s *Shell) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Output implements Terminal.
func (s *Shell) Output() io.Reader { return s.out }

// Resize implements Terminal.
func (s *Shell) Resize(cols, rows int) error {
	return s.session.WindowChange(rows, cols)
}

// Wait returns once the remote shell has exited.
func (s *Shell) Wait() error {
	<-s.done
	if _, ok := s.waitErr.(*ssh.ExitError); ok {
		return nil
	}
	return s.waitErr
}

// Close is safe to call more than once.
func (s *Shell) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stdin.Close()
		s.session.Close()
		err = s.client.Close()
		s.out.Close()
	})
	return err
}
