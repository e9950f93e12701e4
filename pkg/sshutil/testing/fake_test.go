package testing

import (
	"bufio"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/pkg/sshutil"
)

var _ sshutil.Terminal = (*FakeTerminal)(nil)
var _ sshutil.Dialer = (*FakeDialer)(nil)

func TestFakeTerminal(t *testing.T) {
	term := NewFakeTerminal()

	go func() {
		_ = term.Emit("hello\n")
		term.Exit()
	}()
	line, err := bufio.NewReader(term.Output()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line)
	assert.NoError(t, term.Wait())

	_, err = term.Write([]byte("ls\n"))
	require.NoError(t, err)
	require.NoError(t, term.Resize(90, 30))
	assert.Equal(t, "ls\n", term.Input())
	assert.Equal(t, []Resize{{90, 30}}, term.Resizes())

	require.NoError(t, term.Close())
	assert.True(t, term.Closed())
	_, err = term.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestFakeDialer(t *testing.T) {
	d := NewFakeDialer()
	term, err := d.Open(context.Background(), sshutil.Target{Host: "nas"}, sshutil.PTY{Cols: 120, Rows: 36})
	require.NoError(t, err)
	assert.Same(t, term, <-d.Opened())
	require.Len(t, d.Dials(), 1)
	assert.Equal(t, "nas", d.Dials()[0].Target.Host)

	d.Err = errors.New("refused")
	_, err = d.Open(context.Background(), sshutil.Target{}, sshutil.PTY{})
	assert.EqualError(t, err, "refused")
}
