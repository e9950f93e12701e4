// Package sshrelay is the client side of the SSH relay. A Session drives one
// websocket to the server's /ws/ssh endpoint and keeps the terminal output
// in a bounded buffer.
package sshrelay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/wire"
)

// State is the lifecycle of a Session.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateError      State = "error"
)

// Banner is the first line of every session's output.
const Banner = "$ NexusNav SSH terminal\n"

// Output markers.
const (
	MarkerConnected    = "\n[connected]\n"
	MarkerDisconnected = "\n[disconnected]\n"
	MarkerClosed       = "\n[closed]\n"
	MarkerSocketError  = "\n[error] WebSocket connection error.\n"
	MarkerMissingHost  = "\n[error] SSH host/username is missing in card config.\n"
	MarkerNeedPassword = "\n[error] Password is required.\n"
	MarkerNeedKey      = "\n[error] Private key is required.\n"
)

const writeTimeout = 5 * time.Second

// Credentials are supplied at connect time and never stored on the card.
type Credentials struct {
	Password   string
	PrivateKey string
	Passphrase string
}

// Snapshot is a point-in-time copy of a session's visible state.
type Snapshot struct {
	State   State
	Output  string
	Pending string
}

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithHeader sets headers sent on the websocket handshake, e.g. the session cookie.
func WithHeader(h http.Header) Option {
	return func(s *Session) { s.header = h.Clone() }
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithBufferSize caps the retained output.
func WithBufferSize(n int) Option {
	return func(s *Session) { s.out = NewBuffer(n) }
}

// Session is one SSH terminal bound to a card. It owns at most one socket at a time.
type Session struct {
	card     card.Card
	endpoint string
	dialer   *websocket.Dialer
	header   http.Header
	log      logger.Logger
	out      *Buffer

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	gen     uint64
	pending string
	subs    map[int]chan struct{}
	nextSub int

	writeMu sync.Mutex
}

// New returns an idle session for c that will dial the relay on serverURL
// (http, https, ws or wss).
func New(serverURL string, c card.Card, opts ...Option) *Session {
	s := &Session{
		card:     c,
		endpoint: RelayURL(serverURL, c.ID),
		dialer:   websocket.DefaultDialer,
		log:      logger.Noop(),
		state:    StateIdle,
		subs:     make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.out == nil {
		s.out = NewBuffer(DefaultBufferSize)
	}
	s.out.WriteString(Banner)
	return s
}

// RelayURL builds the websocket address of the relay for cardID.
func RelayURL(serverURL, cardID string) string {
	base := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case !strings.HasPrefix(base, "ws://") && !strings.HasPrefix(base, "wss://"):
		base = "ws://" + base
	}
	return base + "/ws/ssh?cardId=" + url.QueryEscape(cardID)
}

// Card returns the card the session connects to.
func (s *Session) Card() card.Card { return s.card }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Output returns the retained terminal output.
func (s *Session) Output() string { return s.out.String() }

// OutputSince returns the output after offset and the new end offset, for
// streaming the terminal to a writer. Start from offset 0.
func (s *Session) OutputSince(offset int64) (string, int64) { return s.out.Since(offset) }

// Snapshot returns state, output and the pending command together.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Output: s.out.String(), Pending: s.pending}
}

// Subscribe returns a channel that receives a value whenever the state or
// output changes. Notifications coalesce; call cancel to stop receiving.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notify must be called with mu held.
func (s *Session) notify() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Session) appendLocked(text string) {
	s.out.WriteString(text)
	s.notify()
}

func (s *Session) setStateLocked(st State) {
	if s.state != st {
		s.log.Debug("ssh session %s: %s -> %s", s.card.ID, s.state, st)
	}
	s.state = st
	s.notify()
}

func (s *Session) usesKey() bool {
	mode, err := card.NormalizeSSHAuthMode(string(s.card.SSHAuthMode))
	return err == nil && mode == card.AuthPrivateKey
}

// validate returns the output marker and error text for a local validation
// failure, or two empty strings.
func (s *Session) validate(creds Credentials) (string, string) {
	if strings.TrimSpace(s.card.SSHHost) == "" || strings.TrimSpace(s.card.SSHUsername) == "" {
		return MarkerMissingHost, "SSH host/username is missing in card config"
	}
	if s.usesKey() {
		if strings.TrimSpace(creds.PrivateKey) == "" {
			return MarkerNeedKey, "Private key is required"
		}
		return "", ""
	}
	if strings.TrimSpace(creds.Password) == "" {
		return MarkerNeedPassword, "Password is required"
	}
	return "", ""
}

// Connect validates the card and credentials, tears down any existing
// socket, dials the relay and sends the connect frame. It returns once the
// frame is sent; the connected transition arrives asynchronously.
func (s *Session) Connect(ctx context.Context, creds Credentials) error {
	if marker, msg := s.validate(creds); marker != "" {
		s.mu.Lock()
		s.appendLocked(marker)
		s.setStateLocked(StateError)
		s.mu.Unlock()
		return errors.New(errors.ErrValidation, msg, "")
	}

	s.mu.Lock()
	s.teardownLocked()
	s.gen++
	gen := s.gen
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	s.log.Info("ssh session %s: dialing %s", s.card.ID, s.endpoint)
	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, s.header)
	if err != nil {
		s.fail(gen)
		return errors.WrapWithCode(err, errors.ErrTransport,
			"Could not open the SSH relay socket",
			"Check that the NexusNav server is running and reachable.")
	}

	s.mu.Lock()
	if gen != s.gen {
		// Disconnected or reconnected while dialing.
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	frame := wire.Frame{Type: wire.FrameConnect, Cols: wire.DefaultCols, Rows: wire.ClientRows}
	if s.usesKey() {
		frame.PrivateKey = creds.PrivateKey
		frame.Passphrase = creds.Passphrase
	} else {
		frame.Password = creds.Password
	}
	if err := s.write(conn, frame); err != nil {
		s.cleanup(gen)
		return errors.WrapWithCode(err, errors.ErrTransport, "Could not send the connect frame", "")
	}

	go s.readLoop(conn, gen)
	return nil
}

// Send writes cmd plus a newline to the remote shell. Blank commands are ignored.
func (s *Session) Send(cmd string) error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cmd) == "" {
		return nil
	}
	return s.write(conn, wire.Frame{Type: wire.FrameInput, Data: cmd + "\n"})
}

// SendRaw writes data to the remote shell unchanged, for raw-mode terminals.
func (s *Session) SendRaw(data string) error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	if data == "" {
		return nil
	}
	return s.write(conn, wire.Frame{Type: wire.FrameInput, Data: data})
}

// SetPending stores the command being typed.
func (s *Session) SetPending(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = cmd
	s.notify()
}

// Submit sends the pending command and clears it on success.
func (s *Session) Submit() error {
	s.mu.Lock()
	cmd := s.pending
	s.mu.Unlock()
	if err := s.Send(cmd); err != nil {
		return err
	}
	s.mu.Lock()
	if strings.TrimSpace(cmd) != "" && s.pending == cmd {
		s.pending = ""
		s.notify()
	}
	s.mu.Unlock()
	return nil
}

// Resize asks the server to change the PTY size.
func (s *Session) Resize(cols, rows int) error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	return s.write(conn, wire.Frame{Type: wire.FrameResize, Cols: cols, Rows: rows})
}

// Disconnect closes the socket if there is one and leaves the session idle.
// It is safe to call any number of times.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.gen++
	s.conn = nil
	if conn != nil {
		s.appendLocked(MarkerDisconnected)
	}
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	if conn != nil {
		s.log.Info("ssh session %s: disconnecting", s.card.ID)
		_ = s.write(conn, wire.Frame{Type: wire.FrameDisconnect})
		conn.Close()
	}
}

// Close disconnects and drops all subscribers.
func (s *Session) Close() {
	s.Disconnect()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Wait blocks until the session leaves the connecting state or ctx is done.
func (s *Session) Wait(ctx context.Context) (State, error) {
	ch, cancel := s.Subscribe()
	defer cancel()
	for {
		if st := s.State(); st != StateConnecting {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return s.State(), ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return s.State(), nil
			}
		}
	}
}

func (s *Session) connected() (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.conn == nil {
		return nil, errors.New(errors.ErrSSH, "SSH session not connected", "Connect first.")
	}
	return s.conn, nil
}

func (s *Session) write(conn *websocket.Conn, f wire.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(f)
}

func (s *Session) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.log.Debug("ssh session %s: socket read ended: %v", s.card.ID, err)
			s.cleanup(gen)
			return
		}
		s.handle(gen, msg)
	}
}

func (s *Session) handle(gen uint64, msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	var f wire.Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		s.appendLocked(string(msg))
		return
	}
	switch f.Type {
	case wire.FrameConnected:
		s.appendLocked(MarkerConnected)
		s.setStateLocked(StateConnected)
	case wire.FrameOutput:
		if f.Data != "" {
			s.appendLocked(f.Data)
		}
	case wire.FrameError:
		message := f.Message
		if message == "" {
			message = "unknown"
		}
		s.appendLocked("\n[error] " + message + "\n")
		s.setStateLocked(StateError)
	case wire.FrameClosed:
		if s.state == StateConnecting || s.state == StateConnected {
			s.appendLocked(MarkerDisconnected)
		}
		s.setStateLocked(StateIdle)
	}
}

// fail records a dial failure for attempt gen.
func (s *Session) fail(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.appendLocked(MarkerSocketError)
	s.setStateLocked(StateError)
}

// cleanup is the single exit path for a socket that errored or closed on
// its own. Stale generations are ignored.
func (s *Session) cleanup(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.gen++
	switch s.state {
	case StateConnecting:
		s.appendLocked(MarkerSocketError)
		s.setStateLocked(StateError)
	case StateConnected:
		s.appendLocked(MarkerClosed)
		s.setStateLocked(StateIdle)
	}
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// teardownLocked drops the current socket without markers, for reconnects.
func (s *Session) teardownLocked() {
	if s.conn == nil {
		return
	}
	conn := s.conn
	s.conn = nil
	s.gen++
	go func() {
		_ = s.write(conn, wire.Frame{Type: wire.FrameDisconnect})
		conn.Close()
	}()
}
