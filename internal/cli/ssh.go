package cli

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/config"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/sshrelay"
)

// detachKey (Ctrl+]) leaves the session without closing the remote shell's
// input first.
const detachKey = 0x1d

const (
	connectTimeout = 30 * time.Second
	resizeInterval = 500 * time.Millisecond
)

// sshCommand connects an SSH card through the relay and attaches the
// terminal until the remote side closes or the user detaches.
func sshCommand(ctx context.Context, r *remote, ref, keyPath string) error {
	cd, err := r.resolveCard(ctx, ref)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cd.SSHHost) == "" || strings.TrimSpace(cd.SSHUsername) == "" {
		return errors.New(errors.ErrValidation,
			fmt.Sprintf("%s has no SSH host or username", cd.Name),
			"Set sshHost and sshUsername on the card in the nav file.")
	}

	creds, err := sshCredentials(cd, keyPath, os.ReadFile)
	if err != nil {
		return err
	}

	sess := newSessionFactory(r)(cd)
	defer sess.Close()

	if err := sess.Connect(ctx, creds); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	state, err := sess.Wait(waitCtx)
	cancel()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Timed out waiting for the SSH session",
			"Check the host is reachable from the server.")
	}
	if state != sshrelay.StateConnected {
		out, _ := sess.OutputSince(0)
		return errors.New(errors.ErrSSH,
			fmt.Sprintf("SSH session to %s failed", sshTarget(cd)),
			lastLine(out))
	}

	return attach(ctx, sess, os.Stdin, os.Stdout)
}

// sshCredentials collects the secret the card's auth mode needs.
func sshCredentials(cd card.Card, keyPath string, readFile func(string) ([]byte, error)) (sshrelay.Credentials, error) {
	mode, err := card.NormalizeSSHAuthMode(string(cd.SSHAuthMode))
	if err != nil {
		return sshrelay.Credentials{}, err
	}

	if mode != card.AuthPrivateKey {
		pw, err := promptPassword("Password for " + sshTarget(cd))
		if err != nil {
			return sshrelay.Credentials{}, err
		}
		return sshrelay.Credentials{Password: pw}, nil
	}

	if keyPath == "" {
		return sshrelay.Credentials{}, errors.New(errors.ErrValidation,
			cd.Name+" uses a private key",
			"Pass the key file with --key.")
	}
	data, err := readFile(config.ExpandTilde(keyPath))
	if err != nil {
		return sshrelay.Credentials{}, errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot read private key "+keyPath,
			"Check the path and its permissions.")
	}

	creds := sshrelay.Credentials{PrivateKey: string(data)}
	_, err = ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	switch {
	case err == nil:
	case stderrors.As(err, &missing):
		pass, err := promptPassword("Passphrase for " + keyPath)
		if err != nil {
			return sshrelay.Credentials{}, err
		}
		creds.Passphrase = pass
	default:
		return sshrelay.Credentials{}, errors.WrapWithCode(err, errors.ErrValidation,
			keyPath+" is not a private key",
			"Point --key at an OpenSSH or PEM private key.")
	}
	return creds, nil
}

// attach streams session output to out and in to the session. A terminal
// stdin is switched to raw mode and kept in sync with the PTY size.
func attach(ctx context.Context, sess *sshrelay.Session, in *os.File, out io.Writer) error {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrSSH, "Cannot put the terminal in raw mode", "")
		}
		defer term.Restore(fd, old)
		go syncSize(ctx, sess, fd)
	}

	go pumpInput(sess, in)

	changed, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	var offset int64
	for {
		var text string
		text, offset = sess.OutputSince(offset)
		if text != "" {
			io.WriteString(out, text)
		}
		if st := sess.State(); st != sshrelay.StateConnected && st != sshrelay.StateConnecting {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changed:
			if !ok {
				return nil
			}
		}
	}
}

// pumpInput forwards keystrokes until the detach key or EOF.
func pumpInput(sess *sshrelay.Session, in io.Reader) {
	buf := make([]byte, 1024)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			data, detach := splitDetach(buf[:n])
			if len(data) > 0 {
				if sendErr := sess.SendRaw(string(data)); sendErr != nil {
					return
				}
			}
			if detach {
				sess.Disconnect()
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// splitDetach returns the bytes before the detach key and whether it was seen.
func splitDetach(data []byte) ([]byte, bool) {
	if i := bytes.IndexByte(data, detachKey); i >= 0 {
		return data[:i], true
	}
	return data, false
}

// syncSize sends the terminal size now and whenever it changes.
func syncSize(ctx context.Context, sess *sshrelay.Session, fd int) {
	ticker := time.NewTicker(resizeInterval)
	defer ticker.Stop()

	lastCols, lastRows := 0, 0
	for {
		if cols, rows, err := term.GetSize(fd); err == nil && (cols != lastCols || rows != lastRows) {
			if sess.Resize(cols, rows) == nil {
				lastCols, lastRows = cols, rows
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sess.State() != sshrelay.StateConnected {
				return
			}
		}
	}
}

func sshTarget(cd card.Card) string {
	target := cd.SSHUsername + "@" + cd.SSHHost
	if p := cd.Port(); p != card.DefaultSSHPort {
		target += fmt.Sprintf(":%d", p)
	}
	return target
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
