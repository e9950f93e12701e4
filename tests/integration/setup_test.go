package integration

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/internal/config"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/server"
	"github.com/nexusnav/nexusnav/internal/storage"
)

// SkipIfNoSSH skips the current test if SSH tests are disabled.
// Set NEXUSNAV_TEST_SKIP_SSH=1 to skip SSH-dependent tests.
func SkipIfNoSSH(t *testing.T) {
	t.Helper()
	if os.Getenv("NEXUSNAV_TEST_SKIP_SSH") == "1" {
		t.Skip("Skipping SSH test: NEXUSNAV_TEST_SKIP_SSH=1")
	}
}

// RequireSSH skips the test unless a test SSH server is configured.
func RequireSSH(t *testing.T) {
	t.Helper()
	SkipIfNoSSH(t)
	if os.Getenv("NEXUSNAV_TEST_SSH_HOST") == "" {
		t.Skip("Skipping: NEXUSNAV_TEST_SSH_HOST not set (SSH test server not available)")
	}
	if os.Getenv("NEXUSNAV_TEST_SSH_KEY") == "" {
		t.Skip("Skipping: NEXUSNAV_TEST_SSH_KEY not set (SSH test key not available)")
	}
}

// GetTestSSHHost returns the host and port of the test SSH server.
// NEXUSNAV_TEST_SSH_HOST may carry a port, as in "localhost:2222".
func GetTestSSHHost() (string, int) {
	addr := os.Getenv("NEXUSNAV_TEST_SSH_HOST")
	if addr == "" {
		return "localhost", 22
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 22
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 22
	}
	return host, port
}

// GetTestSSHUser returns the SSH user configured for testing.
// Defaults to the current user if NEXUSNAV_TEST_SSH_USER is not set.
func GetTestSSHUser() string {
	user := os.Getenv("NEXUSNAV_TEST_SSH_USER")
	if user == "" {
		return os.Getenv("USER")
	}
	return user
}

// GetTestSSHKey returns the path to the SSH key for testing.
// Defaults to ~/.ssh/id_rsa if NEXUSNAV_TEST_SSH_KEY is not set.
func GetTestSSHKey() string {
	key := os.Getenv("NEXUSNAV_TEST_SSH_KEY")
	if key == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".ssh", "id_rsa")
	}
	return key
}

// StartServer runs a full server for nav on a random local port and returns
// its base URL. The server stops when the test ends.
func StartServer(t *testing.T, nav string) string {
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

	ctx, cancel := context.WithCancel(context.Background())
	srv := server.New(cfg, logger.NewBufferLogger())
	require.NoError(t, srv.OpenStorage(ctx))
	_, err := srv.ImportConfig(ctx)
	require.NoError(t, err)
	require.NoError(t, srv.Wire())

	ln, err := srv.Listen()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
		_ = srv.Close()
	})

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	return base
}

// TestSetupHelpers verifies the test helpers work correctly.
func TestSetupHelpers(t *testing.T) {
	t.Run("GetTestSSHHost returns default", func(t *testing.T) {
		t.Setenv("NEXUSNAV_TEST_SSH_HOST", "")

		host, port := GetTestSSHHost()
		if host != "localhost" || port != 22 {
			t.Errorf("Expected localhost:22, got %s:%d", host, port)
		}
	})

	t.Run("GetTestSSHHost splits the port", func(t *testing.T) {
		t.Setenv("NEXUSNAV_TEST_SSH_HOST", "testhost:2222")

		host, port := GetTestSSHHost()
		if host != "testhost" || port != 2222 {
			t.Errorf("Expected testhost:2222, got %s:%d", host, port)
		}
	})

	t.Run("GetTestSSHUser falls back to USER", func(t *testing.T) {
		t.Setenv("NEXUSNAV_TEST_SSH_USER", "")
		t.Setenv("USER", "tester")

		if got := GetTestSSHUser(); got != "tester" {
			t.Errorf("Expected tester, got %s", got)
		}
	})
}
