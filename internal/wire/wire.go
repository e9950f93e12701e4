// Package wire holds the JSON shapes shared by the server and its clients:
// the REST response envelope and the SSH relay frames.
package wire

import (
	"encoding/json"
)

// CodeOK is the envelope code of a successful response.
const CodeOK = 0

// Envelope wraps every REST response.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the envelope carries a success code.
func (e Envelope) OK() bool { return e.Code == CodeOK }

// Frame types sent by the client.
const (
	FrameConnect    = "connect"
	FrameInput      = "input"
	FrameResize     = "resize"
	FrameDisconnect = "disconnect"
)

// Frame types sent by the server.
const (
	FrameConnected = "connected"
	FrameOutput    = "output"
	FrameError     = "error"
	FrameClosed    = "closed"
)

// Terminal geometry. Clients ask for DefaultCols x ClientRows; the server
// clamps to the minimums and falls back to DefaultCols x DefaultRows.
const (
	DefaultCols = 120
	DefaultRows = 32
	ClientRows  = 36
	MinCols     = 40
	MinRows     = 10
)

// Frame is one SSH relay message in either direction. Unused fields are omitted.
type Frame struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
	Cols       int    `json:"cols,omitempty"`
	Rows       int    `json:"rows,omitempty"`
}

// ClampSize applies the server's geometry rules: a missing value takes the
// default, anything smaller than the minimum is raised to it.
func ClampSize(cols, rows int) (int, int) {
	if cols == 0 {
		cols = DefaultCols
	}
	if rows == 0 {
		rows = DefaultRows
	}
	if cols < MinCols {
		cols = MinCols
	}
	if rows < MinRows {
		rows = MinRows
	}
	return cols, rows
}

// PasswordRequest is the body of login and verify-config.
type PasswordRequest struct {
	Password string `json:"password"`
}

// Session describes the caller's admin session.
type Session struct {
	Authenticated         bool `json:"authenticated"`
	SecurityEnabled       bool `json:"securityEnabled"`
	SessionTimeoutMinutes int  `json:"sessionTimeoutMinutes,omitempty"`
}

// VerifyToken unlocks one config change.
type VerifyToken struct {
	VerifyToken      string `json:"verifyToken"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// ReloadResult answers a config reload.
type ReloadResult struct {
	Changed bool   `json:"changed"`
	Message string `json:"message"`
	Prune   bool   `json:"prune"`
}

// ImportResult answers a nav import.
type ImportResult struct {
	Groups  int    `json:"groups"`
	Cards   int    `json:"cards"`
	Message string `json:"message"`
}

// OrderResult answers a card reorder.
type OrderResult struct {
	Updated int `json:"updated"`
}
