// Package testing provides in-memory sshutil.Dialer and sshutil.Terminal fakes.
package testing

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/nexusnav/nexusnav/pkg/sshutil"
)

// Resize records one Resize call.
type Resize struct {
	Cols, Rows int
}

// FakeTerminal is a scriptable shell. Tests feed output with Emit and end
// the shell with Exit; everything written to it is captured in Input.
type FakeTerminal struct {
	mu      sync.Mutex
	input   bytes.Buffer
	resizes []Resize
	closed  bool

	out     *io.PipeReader
	outW    *io.PipeWriter
	done    chan struct{}
	endOnce sync.Once
}

// NewFakeTerminal returns a terminal with an open output stream.
func NewFakeTerminal() *FakeTerminal {
	pr, pw := io.Pipe()
	return &FakeTerminal{out: pr, outW: pw, done: make(chan struct{})}
}

// Write captures input.
func (f *FakeTerminal) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	return f.input.Write(p)
}

// Output implements sshutil.Terminal.
func (f *FakeTerminal) Output() io.Reader { return f.out }

// Resize records the new size.
func (f *FakeTerminal) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, Resize{Cols: cols, Rows: rows})
	return nil
}

// Wait blocks until Exit or Close.
func (f *FakeTerminal) Wait() error {
	<-f.done
	return nil
}

// Close ends the shell.
func (f *FakeTerminal) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.end()
	return nil
}

// Emit writes s to the output stream. It blocks until the reader consumes it.
func (f *FakeTerminal) Emit(s string) error {
	_, err := io.WriteString(f.outW, s)
	return err
}

// Exit ends the output stream as if the remote shell had exited.
func (f *FakeTerminal) Exit() { f.end() }

func (f *FakeTerminal) end() {
	f.endOnce.Do(func() {
		f.outW.Close()
		close(f.done)
	})
}

// Input returns everything written so far.
func (f *FakeTerminal) Input() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.String()
}

// Resizes returns the recorded Resize calls.
func (f *FakeTerminal) Resizes() []Resize {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Resize(nil), f.resizes...)
}

// Closed reports whether Close was called.
func (f *FakeTerminal) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Dial records one Open call.
type Dial struct {
	Target sshutil.Target
	PTY    sshutil.PTY
}

// FakeDialer hands out FakeTerminals, or Err when set.
type FakeDialer struct {
	mu        sync.Mutex
	Err       error
	dials     []Dial
	terminals []*FakeTerminal
	opened    chan *FakeTerminal
}

// NewFakeDialer returns a dialer whose opened terminals are also sent on Opened.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{opened: make(chan *FakeTerminal, 16)}
}

// Open implements sshutil.Dialer.
func (d *FakeDialer) Open(ctx context.Context, target sshutil.Target, pty sshutil.PTY) (sshutil.Terminal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, Dial{Target: target, PTY: pty})
	if d.Err != nil {
		return nil, d.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	term := NewFakeTerminal()
	d.terminals = append(d.terminals, term)
	select {
	case d.opened <- term:
	default:
	}
	return term, nil
}

// Opened delivers each terminal as it is opened.
func (d *FakeDialer) Opened() <-chan *FakeTerminal { return d.opened }

// Dials returns the recorded Open calls.
func (d *FakeDialer) Dials() []Dial {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Dial(nil), d.dials...)
}
