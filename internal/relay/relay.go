// Package relay serves /ws/ssh: each websocket carries at most one SSH
// shell, opened from an SSH card and fed by JSON frames.
package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/wire"
	"github.com/nexusnav/nexusnav/pkg/sshutil"
)

// ChunkSize bounds the data of one output frame.
const ChunkSize = 4096

const writeTimeout = 10 * time.Second

// CardLookup finds a card by id. A missing card is an ErrNotFound error.
type CardLookup interface {
	GetCard(ctx context.Context, id string) (card.Card, error)
}

// Handler upgrades requests to websockets and relays them to SSH shells.
type Handler struct {
	cards    CardLookup
	dialer   sshutil.Dialer
	log      logger.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithMetrics records sessions and connect outcomes.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithCheckOrigin restricts which browser origins may open the socket.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Handler) { h.upgrader.CheckOrigin = fn }
}

// NewHandler returns a relay handler. Any origin is accepted unless WithCheckOrigin is given.
func NewHandler(cards CardLookup, dialer sshutil.Dialer, opts ...Option) *Handler {
	h := &Handler{
		cards:  cards,
		dialer: dialer,
		log:    logger.Noop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ssh websocket upgrade failed: %v", err)
		return
	}
	s := &conn{
		h:      h,
		ws:     ws,
		id:     uuid.NewString(),
		cardID: strings.TrimSpace(r.URL.Query().Get("cardId")),
	}
	h.log.Info("ssh websocket opened: session=%s card=%s", s.id, s.cardID)
	h.metrics.opened()
	defer h.metrics.closed()

	s.serve(r.Context())
}

// conn is one websocket and the shell it may own.
type conn struct {
	h      *Handler
	ws     *websocket.Conn
	id     string
	cardID string

	writeMu sync.Mutex

	mu   sync.Mutex
	term sshutil.Terminal
}

func (c *conn) serve(ctx context.Context) {
	defer c.ws.Close()
	defer c.closeTerminal()

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.h.log.Warn("ssh websocket error: session=%s: %v", c.id, err)
			} else {
				c.h.log.Info("ssh websocket closed: session=%s", c.id)
			}
			return
		}
		c.handle(ctx, msg)
	}
}

func (c *conn) handle(ctx context.Context, msg []byte) {
	var f wire.Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		c.h.log.Warn("invalid ssh websocket payload: session=%s: %v", c.id, err)
		c.sendError("Invalid message payload")
		return
	}
	switch f.Type {
	case wire.FrameConnect:
		c.connect(ctx, f)
	case wire.FrameInput:
		c.input(f)
	case wire.FrameResize:
		c.resize(f)
	case wire.FrameDisconnect:
		c.closeTerminal()
		c.send(wire.Frame{Type: wire.FrameClosed})
	default:
		c.h.log.Warn("unsupported ssh websocket message type: session=%s type=%q", c.id, f.Type)
		c.sendError("Unsupported message type")
	}
}

// reject logs why a connect was refused and tells the client.
func (c *conn) reject(reason, message string) {
	c.h.log.Warn("ssh connect rejected: session=%s card=%s reason=%s", c.id, c.cardID, reason)
	c.h.metrics.connect("rejected")
	c.sendError(message)
}

func (c *conn) connect(ctx context.Context, f wire.Frame) {
	if c.terminal() != nil {
		c.sendError("SSH session already connected")
		return
	}
	if c.cardID == "" {
		c.reject("missing cardId", "Missing cardId")
		return
	}

	cd, err := c.h.cards.GetCard(ctx, c.cardID)
	if err != nil {
		if errors.IsCode(err, errors.ErrNotFound) {
			c.reject("card not found", "Card not found")
			return
		}
		c.h.log.Error("ssh card lookup failed: session=%s card=%s: %v", c.id, c.cardID, err)
		c.sendError(errors.Public(err))
		return
	}
	typ, err := card.NormalizeType(string(cd.CardType))
	if err != nil {
		c.reject("invalid card type", "Invalid card type")
		return
	}
	if typ != card.TypeSSH {
		c.reject("not an SSH card ("+string(typ)+")", "Card is not SSH type")
		return
	}
	mode, err := card.NormalizeSSHAuthMode(string(cd.SSHAuthMode))
	if err != nil {
		c.reject("invalid auth mode", "Invalid SSH auth mode")
		return
	}
	host := strings.TrimSpace(cd.SSHHost)
	user := strings.TrimSpace(cd.SSHUsername)
	if host == "" || user == "" {
		c.reject("incomplete SSH config", "SSH card config is incomplete")
		return
	}
	if mode == card.AuthPassword && strings.TrimSpace(f.Password) == "" {
		c.reject("password missing", "Password is required")
		return
	}
	if mode == card.AuthPrivateKey && strings.TrimSpace(f.PrivateKey) == "" {
		c.reject("private key missing", "Private key is required")
		return
	}

	target := sshutil.Target{
		Host:     host,
		Port:     cd.Port(),
		User:     user,
		AuthMode: string(mode),
	}
	if mode == card.AuthPrivateKey {
		target.PrivateKey = f.PrivateKey
		target.Passphrase = f.Passphrase
	} else {
		target.Password = f.Password
	}
	cols, rows := wire.ClampSize(f.Cols, f.Rows)

	c.h.log.Info("ssh connect start: session=%s card=%s host=%s port=%d user=%s auth=%s",
		c.id, c.cardID, host, target.Port, user, mode)
	term, err := c.h.dialer.Open(ctx, target, sshutil.PTY{Term: sshutil.DefaultTerm, Cols: cols, Rows: rows})
	if err != nil {
		c.h.log.Warn("ssh connect failed: session=%s card=%s host=%s: %v", c.id, c.cardID, host, err)
		c.h.metrics.connect("failed")
		c.sendError("SSH connect failed: " + errors.Detail(err))
		return
	}

	c.mu.Lock()
	c.term = term
	c.mu.Unlock()

	c.h.log.Info("ssh connect success: session=%s card=%s host=%s", c.id, c.cardID, host)
	c.h.metrics.connect("ok")
	c.send(wire.Frame{Type: wire.FrameConnected})
	go c.stream(term)
}

func (c *conn) input(f wire.Frame) {
	term := c.terminal()
	if term == nil {
		c.h.log.Warn("ssh input rejected: session=%s reason=not connected", c.id)
		c.sendError("SSH session not connected")
		return
	}
	if f.Data == "" {
		return
	}
	if _, err := io.WriteString(term, f.Data); err != nil {
		c.h.log.Debug("ssh input write failed: session=%s: %v", c.id, err)
	}
}

func (c *conn) resize(f wire.Frame) {
	term := c.terminal()
	if term == nil {
		return
	}
	cols, rows := wire.ClampSize(f.Cols, f.Rows)
	if err := term.Resize(cols, rows); err != nil {
		c.h.log.Debug("ssh resize failed: session=%s: %v", c.id, err)
	}
}

// stream forwards shell output until it ends. When the shell ends on its
// own the client is told the session closed.
func (c *conn) stream(term sshutil.Terminal) {
	buf := make([]byte, ChunkSize)
	carry := 0
	for {
		n, err := term.Output().Read(buf[carry:])
		if n > 0 {
			data := buf[:carry+n]
			cut := completeRunes(data)
			if cut > 0 {
				c.send(wire.Frame{Type: wire.FrameOutput, Data: string(data[:cut])})
			}
			carry = copy(buf, data[cut:])
		}
		if err != nil {
			if err != io.EOF {
				c.h.log.Warn("ssh output stream interrupted: session=%s: %v", c.id, err)
			}
			if carry > 0 {
				c.send(wire.Frame{Type: wire.FrameOutput, Data: string(buf[:carry])})
			}
			break
		}
	}

	c.mu.Lock()
	owned := c.term == term
	if owned {
		c.term = nil
	}
	c.mu.Unlock()
	if owned {
		_ = term.Close()
		c.h.log.Info("ssh shell ended: session=%s card=%s", c.id, c.cardID)
		c.send(wire.Frame{Type: wire.FrameClosed})
	}
}

// completeRunes returns the length of the longest prefix of p that does not
// end inside a UTF-8 sequence.
func completeRunes(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if utf8.FullRune(p[i:]) {
				return len(p)
			}
			return i
		}
	}
	return len(p)
}

func (c *conn) terminal() sshutil.Terminal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.term
}

func (c *conn) closeTerminal() {
	c.mu.Lock()
	term := c.term
	c.term = nil
	c.mu.Unlock()
	if term != nil {
		_ = term.Close()
		c.h.log.Info("ssh session closed: session=%s card=%s", c.id, c.cardID)
	}
}

func (c *conn) sendError(message string) {
	c.send(wire.Frame{Type: wire.FrameError, Message: message})
}

func (c *conn) send(f wire.Frame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(f); err != nil {
		c.h.log.Debug("ssh websocket send failed: session=%s: %v", c.id, err)
	}
}
