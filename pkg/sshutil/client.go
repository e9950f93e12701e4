package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/nexusnav/nexusnav/internal/errors"
)

// DefaultDialTimeout bounds the TCP dial plus the SSH handshake.
const DefaultDialTimeout = 10 * time.Second

// Client wraps an SSH connection with the address it was dialed at.
type Client struct {
	*ssh.Client
	Host    string // host or alias as given
	Address string // resolved host:port
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// SSHDialer opens PTY shells over real SSH connections.
type SSHDialer struct {
	Timeout time.Duration

	// ConfigPath is the ssh config consulted for aliases. Empty means ~/.ssh/config.
	ConfigPath string

	// KnownHostsPath enables host key verification against that file.
	// When empty any host key is accepted.
	KnownHostsPath string
}

// Open implements Dialer.
func (d *SSHDialer) Open(ctx context.Context, target Target, pty PTY) (Terminal, error) {
	path := d.ConfigPath
	if path == "" {
		path = DefaultConfigPath()
	}
	target = ResolveHost(path, target.Host).Apply(target)

	hostKeys := ssh.InsecureIgnoreHostKey() //nolint:gosec // verification is opt-in via KnownHostsPath
	if d.KnownHostsPath != "" {
		cb, err := createHostKeyCallback(d.KnownHostsPath)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH, "Failed to load known_hosts", "Check the relay.knownHostsFile setting.")
		}
		hostKeys = cb
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	client, err := Dial(ctx, target, hostKeys, timeout)
	if err != nil {
		return nil, err
	}
	shell, err := client.OpenShell(pty)
	if err != nil {
		client.Close()
		return nil, err
	}
	return shell, nil
}

// Dial connects and authenticates to target, which must already be resolved.
func Dial(ctx context.Context, target Target, hostKeys ssh.HostKeyCallback, timeout time.Duration) (*Client, error) {
	auth, err := authMethods(target)
	if err != nil {
		return nil, err
	}
	port := target.Port
	if port <= 0 {
		port = 22
	}
	address := net.JoinHostPort(target.Host, strconv.Itoa(port))
	config := &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", target.Host, address),
			suggestionForDialError(err))
	}

	// The handshake has no context of its own.
	_ = conn.SetDeadline(time.Now().Add(timeout))
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	stop()
	if err != nil {
		conn.Close()
		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH, hostKeyErr.Error(), hostKeyErr.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", target.Host),
			suggestionForHandshakeError(err))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    target.Host,
		Address: address,
	}, nil
}

func authMethods(t Target) ([]ssh.AuthMethod, error) {
	switch t.AuthMode {
	case AuthPrivateKey:
		signer, err := parseKey(t.PrivateKey, t.Passphrase)
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	case AuthPassword, "":
		if t.Password == "" {
			return nil, errors.New(errors.ErrValidation, "Password is required", "")
		}
		pw := t.Password
		return []ssh.AuthMethod{
			ssh.Password(pw),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = pw
				}
				return answers, nil
			}),
		}, nil
	default:
		return nil, errors.Newf(errors.ErrValidation, "Invalid SSH auth mode: %s", t.AuthMode)
	}
}

func parseKey(pemText, passphrase string) (ssh.Signer, error) {
	if strings.TrimSpace(pemText) == "" {
		return nil, errors.New(errors.ErrValidation, "Private key is required", "")
	}
	key := []byte(pemText)
	var (
		signer ssh.Signer
		err    error
	)
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if stderrors.As(err, &missing) {
		return nil, errors.New(errors.ErrValidation, "Private key is encrypted", "Provide the key passphrase.")
	}
	return nil, errors.WrapWithCode(err, errors.ErrValidation, "Private key could not be parsed", "Paste the full PEM block, including the BEGIN and END lines.")
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Check the card's host and port."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check the relay server's network."
	}
	if strings.Contains(errStr, "timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable from the NexusNav server."
}

func suggestionForHandshakeError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		return "Auth failed. Check the username and the password or key."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// HostKeyMismatchError explains a known_hosts verification failure.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns the commands that fix the mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	wantTypes := make([]string, 0, len(e.Want))
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	want := "unknown"
	if len(wantTypes) > 0 {
		want = strings.Join(wantTypes, ", ")
	}
	return fmt.Sprintf(
		"Known types: %s, server sent: %s.\n"+
			"  Refresh the entry: ssh-keygen -f %s -R %s",
		want, e.ReceivedType, e.KnownHosts, host)
}

// createHostKeyCallback wraps knownhosts so mismatches carry a suggestion.
// The file is created empty when missing.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(knownHostsPath), err)
		}
		if err := os.WriteFile(knownHostsPath, nil, 0o600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if err != nil && stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}
		return err
	}, nil
}
