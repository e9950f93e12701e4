package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "data/nexusnav.db", cfg.Storage.Path)
	assert.Equal(t, "config/nav.yaml", cfg.Nav.NavPath)
	assert.Equal(t, "config/system.yaml", cfg.Nav.SystemPath)
	assert.True(t, cfg.Nav.PruneOnStart)
	assert.Equal(t, "@every 30s", cfg.Probe.Schedule)
	assert.Equal(t, 2, cfg.Probe.Threshold)
	assert.Equal(t, 8*time.Second, cfg.Stats.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Stats.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.SSH.DialTimeout)
	assert.Equal(t, 256<<10, cfg.SSH.BufferBytes)
	assert.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	content := `
version: 1
server:
  addr: 127.0.0.1:9000
  allowed_origins: [http://nav.lan]
storage:
  path: nav.db
nav:
  nav_path: /etc/nexusnav/nav.json
  admin_password: s3cret
  prune_on_start: false
probe:
  schedule: "@every 1m"
  timeout: 3s
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, configPath, cfg.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://nav.lan"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, filepath.Join(dir, "nav.db"), cfg.Storage.Path, "relative paths follow the config file")
	assert.Equal(t, "/etc/nexusnav/nav.json", cfg.Nav.NavPath)
	assert.Equal(t, "config/system.yaml", cfg.Nav.SystemPath, "defaults stay relative to the working directory")
	assert.Equal(t, "s3cret", cfg.Nav.AdminPassword)
	assert.False(t, cfg.Nav.PruneOnStart)
	assert.Equal(t, "@every 1m", cfg.Probe.Schedule)
	assert.Equal(t, 3*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 2, cfg.Probe.Threshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NEXUSNAV_SERVER_ADDR", ":7000")
	t.Setenv("NEXUSNAV_PROBE_THRESHOLD", "4")
	t.Setenv("NEXUSNAV_CLIENT_SERVER", "https://nav.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Path)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Probe.Threshold)
	assert.Equal(t, "https://nav.example.com", cfg.Client.Server)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")

	wrongType := filepath.Join(t.TempDir(), "type.yaml")
	require.NoError(t, os.WriteFile(wrongType, []byte("probe:\n  timeout: soon\n"), 0644))
	_, err = Load(wrongType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid config format")
}

func TestFind(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(p, []byte("version: 1\n"), 0644))
		got, err := Find(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Specified config file not found")
	})

	t.Run("working directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("version: 1\n"), 0644))
		chdir(t, dir)
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		got, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, ConfigFileName, filepath.Base(got))
	})

	t.Run("xdg config home", func(t *testing.T) {
		chdir(t, t.TempDir())
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)
		global := filepath.Join(xdg, GlobalConfigDir, GlobalConfigFile)
		require.NoError(t, os.MkdirAll(filepath.Dir(global), 0755))
		require.NoError(t, os.WriteFile(global, []byte("version: 1\n"), 0644))

		got, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, global, got)
	})

	t.Run("nothing found", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		got, err := Find("")
		require.NoError(t, err)
		assert.Empty(t, got)

		cfg, err := LoadOrDefault("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"future version", func(c *Config) { c.Version = 99 }, "from the future"},
		{"empty addr", func(c *Config) { c.Server.Addr = " " }, "server.addr is required"},
		{"empty storage", func(c *Config) { c.Storage.Path = "" }, "storage.path is required"},
		{"nav extension", func(c *Config) { c.Nav.NavPath = "nav.toml" }, "unsupported extension"},
		{"same files", func(c *Config) { c.Nav.SystemPath = c.Nav.NavPath }, "must differ"},
		{"bad schedule", func(c *Config) { c.Probe.Schedule = "every now and then" }, "probe.schedule"},
		{"zero probe timeout", func(c *Config) { c.Probe.Timeout = 0 }, "probe.timeout"},
		{"threshold", func(c *Config) { c.Probe.Threshold = 0 }, "probe.threshold"},
		{"stats poll", func(c *Config) { c.Stats.PollInterval = 0 }, "stats.poll_interval"},
		{"ssh buffer", func(c *Config) { c.SSH.BufferBytes = 10 }, "ssh.buffer_bytes"},
		{"client scheme", func(c *Config) { c.Client.Server = "ftp://nav" }, "client.server"},
		{"client host", func(c *Config) { c.Client.Server = "http://" }, "client.server"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.Error(t, Validate(nil))
}

func TestValidate_CronDescriptors(t *testing.T) {
	for _, spec := range []string{"@every 15s", "@hourly", "*/5 * * * *", "*/10 * * * * *"} {
		cfg := DefaultConfig()
		cfg.Probe.Schedule = spec
		assert.NoError(t, Validate(cfg), spec)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
