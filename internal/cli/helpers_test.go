package cli

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/internal/config"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/prefs"
	"github.com/nexusnav/nexusnav/internal/server"
	"github.com/nexusnav/nexusnav/internal/storage"
)

const testNav = `
version: "1"
groups:
  - id: media
    name: Media
  - id: infra
    name: Infra
cards:
  - id: grafana
    groupId: infra
    name: Grafana
    url: http://grafana.lan:3000
    openMode: newtab
    cardType: generic
    enabled: true
  - id: router
    groupId: infra
    name: Router
    url: http://192.168.1.1
    lanUrl: http://192.168.1.1
    wanUrl: https://router.example.com
    openMode: newtab
    cardType: generic
    enabled: true
  - id: nas
    groupId: infra
    name: NAS
    openMode: newtab
    cardType: ssh
    sshHost: 10.0.0.2
    sshUsername: root
    enabled: true
  - id: old-wiki
    groupId: media
    name: Old Wiki
    url: http://wiki.lan
    openMode: newtab
    cardType: generic
    enabled: false
`

// serverConfig returns a server config backed by an in-memory database and
// files under a temp dir.
func serverConfig(t *testing.T, nav string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Storage.Path = storage.MemoryPath
	cfg.Nav.NavPath = filepath.Join(dir, "nav.yaml")
	cfg.Nav.SystemPath = filepath.Join(dir, "system.yaml")
	cfg.Probe.Schedule = "@every 1h"
	if nav != "" {
		require.NoError(t, os.WriteFile(cfg.Nav.NavPath, []byte(nav), 0o644))
	}
	return cfg
}

// newTestServer builds a wired server for nav and serves its router.
func newTestServer(t *testing.T, nav string) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	s := server.New(serverConfig(t, nav), logger.NewBufferLogger())
	require.NoError(t, s.OpenStorage(ctx))
	t.Cleanup(func() { _ = s.Close() })

	_, err := s.ImportConfig(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Wire())

	ts := httptest.NewServer(s.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// newTestRemote points a remote at url with in-memory preferences.
func newTestRemote(t *testing.T, url string) (*remote, *prefs.Memory) {
	t.Helper()
	store := prefs.NewMemory(prefs.Prefs{})
	r, err := newRemote(config.DefaultConfig(), store, url, nil)
	require.NoError(t, err)
	return r, store
}

// loggedIn returns a remote holding an admin session.
func loggedIn(t *testing.T, url string) (*remote, *prefs.Memory) {
	t.Helper()
	t.Setenv(PasswordEnv, "admin")
	r, store := newTestRemote(t, url)
	require.NoError(t, loginCommand(context.Background(), io.Discard, r))
	return r, store
}

// withMachineMode sets --json for the duration of the test.
func withMachineMode(t *testing.T, on bool) {
	t.Helper()
	old := machineMode
	machineMode = on
	t.Cleanup(func() { machineMode = old })
}

// closedPort returns an address nothing listens on.
func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}
