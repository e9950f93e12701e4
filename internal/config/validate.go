package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/probe"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// Validate checks cfg and returns the first problem as an ErrConfig error
// with a suggestion.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig, "Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but nexusnav only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade nexusnav or lower the version field.")
	}

	checks := []func(*Config) error{
		validateServer,
		validateStorage,
		validateNav,
		validateProbe,
		validateStats,
		validateSSH,
		validateClient,
		validateLog,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateServer(cfg *Config) error {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New(errors.ErrConfig, "server.addr is required",
			"Set a listen address like ':8080'.")
	}
	if cfg.Server.ShutdownTimeout < 0 {
		return errors.New(errors.ErrConfig, "server.shutdown_timeout can't be negative",
			"Use a duration like '10s'.")
	}
	return nil
}

func validateStorage(cfg *Config) error {
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return errors.New(errors.ErrConfig, "storage.path is required",
			"Point it at a sqlite file, e.g. 'data/nexusnav.db'.")
	}
	return nil
}

func validateNav(cfg *Config) error {
	for key, p := range map[string]string{"nav.nav_path": cfg.Nav.NavPath, "nav.system_path": cfg.Nav.SystemPath} {
		if strings.TrimSpace(p) == "" {
			return errors.New(errors.ErrConfig, key+" is required",
				"Point it at a .yaml or .json file.")
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml", ".json":
		default:
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s has an unsupported extension: %s", key, p),
				"Use .yaml, .yml or .json.")
		}
	}
	if cfg.Nav.NavPath == cfg.Nav.SystemPath {
		return errors.New(errors.ErrConfig, "nav.nav_path and nav.system_path must differ",
			"Keep cards and system settings in separate files.")
	}
	return nil
}

func validateProbe(cfg *Config) error {
	if err := probe.ValidateSchedule(cfg.Probe.Schedule); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("probe.schedule is not a valid schedule: '%s'", cfg.Probe.Schedule),
			"Use a cron spec or a descriptor like '@every 30s'.")
	}
	if cfg.Probe.Timeout <= 0 {
		return errors.New(errors.ErrConfig, "probe.timeout must be positive",
			"Use a duration like '5s'.")
	}
	if cfg.Probe.Threshold < 1 {
		return errors.New(errors.ErrConfig, "probe.threshold must be at least 1",
			"The default of 2 marks a card down after two failures in a row.")
	}
	return nil
}

func validateStats(cfg *Config) error {
	if cfg.Stats.Timeout <= 0 {
		return errors.New(errors.ErrConfig, "stats.timeout must be positive",
			"Use a duration like '8s'.")
	}
	if cfg.Stats.PollInterval <= 0 {
		return errors.New(errors.ErrConfig, "stats.poll_interval must be positive",
			"Use a duration like '30s'.")
	}
	return nil
}

func validateSSH(cfg *Config) error {
	if cfg.SSH.DialTimeout <= 0 {
		return errors.New(errors.ErrConfig, "ssh.dial_timeout must be positive",
			"Use a duration like '10s'.")
	}
	if cfg.SSH.BufferBytes < 1024 {
		return errors.New(errors.ErrConfig, "ssh.buffer_bytes must be at least 1024",
			"The default keeps the last 256 KiB of terminal output.")
	}
	return nil
}

func validateClient(cfg *Config) error {
	u, err := url.Parse(cfg.Client.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("client.server must be an http(s) URL: '%s'", cfg.Client.Server),
			"For example 'http://127.0.0.1:8080'.")
	}
	if cfg.Client.Timeout <= 0 {
		return errors.New(errors.ErrConfig, "client.timeout must be positive",
			"Use a duration like '10s'.")
	}
	return nil
}

func validateLog(cfg *Config) error {
	if !oneOf(cfg.Log.Level, validLevels) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("log.level '%s' isn't valid", cfg.Log.Level),
			"Use one of: "+strings.Join(validLevels, ", "))
	}
	if !oneOf(cfg.Log.Format, validFormats) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("log.format '%s' isn't valid", cfg.Log.Format),
			"Use one of: "+strings.Join(validFormats, ", "))
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
