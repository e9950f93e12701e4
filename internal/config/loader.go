package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/nexusnav/nexusnav/internal/errors"
)

const (
	// ConfigFileName is the config file looked up in the working directory.
	ConfigFileName = "nexusnav.yaml"
	// GlobalConfigDir is the directory under $XDG_CONFIG_HOME for the global config.
	GlobalConfigDir = "nexusnav"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. NEXUSNAV_SERVER_ADDR.
	EnvPrefix = "NEXUSNAV"
)

// pathKeys are resolved against the config file's directory when relative.
var pathKeys = []string{
	"storage.path",
	"nav.nav_path",
	"nav.system_path",
	"ssh.config_path",
	"ssh.known_hosts_path",
}

// Load reads config from path. An empty path yields defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found: "+path,
					"Create it or point --config somewhere else")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. nexusnav.yaml in the current directory
// 3. $XDG_CONFIG_HOME/nexusnav/config.yaml (default ~/.config)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}
	local := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if dir := globalDir(); dir != "" {
		global := filepath.Join(dir, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// LoadOrDefault finds and loads the config, falling back to defaults when
// no file exists.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// globalDir is $XDG_CONFIG_HOME, or ~/.config when unset.
func globalDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so env overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.retry_for", d.Storage.RetryFor)
	v.SetDefault("nav.nav_path", d.Nav.NavPath)
	v.SetDefault("nav.system_path", d.Nav.SystemPath)
	v.SetDefault("nav.admin_password", d.Nav.AdminPassword)
	v.SetDefault("nav.prune_on_start", d.Nav.PruneOnStart)
	v.SetDefault("auth.token_secret", d.Auth.TokenSecret)
	v.SetDefault("probe.schedule", d.Probe.Schedule)
	v.SetDefault("probe.timeout", d.Probe.Timeout)
	v.SetDefault("probe.threshold", d.Probe.Threshold)
	v.SetDefault("stats.timeout", d.Stats.Timeout)
	v.SetDefault("stats.poll_interval", d.Stats.PollInterval)
	v.SetDefault("ssh.config_path", d.SSH.ConfigPath)
	v.SetDefault("ssh.known_hosts_path", d.SSH.KnownHostsPath)
	v.SetDefault("ssh.dial_timeout", d.SSH.DialTimeout)
	v.SetDefault("ssh.buffer_bytes", d.SSH.BufferBytes)
	v.SetDefault("client.server", d.Client.Server)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// parseConfig converts viper config to our Config struct.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		where := "the environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+where)
	}
	cfg.Path = path

	base := configDir(path)
	for _, key := range pathKeys {
		p := pathField(cfg, key)
		*p = ExpandTilde(Expand(*p))
		if *p != "" && *p != ":memory:" && !filepath.IsAbs(*p) && path != "" && v.InConfig(key) {
			*p = filepath.Join(base, *p)
		}
	}

	return cfg, nil
}

func pathField(cfg *Config, key string) *string {
	switch key {
	case "storage.path":
		return &cfg.Storage.Path
	case "nav.nav_path":
		return &cfg.Nav.NavPath
	case "nav.system_path":
		return &cfg.Nav.SystemPath
	case "ssh.config_path":
		return &cfg.SSH.ConfigPath
	default:
		return &cfg.SSH.KnownHostsPath
	}
}

// configDir returns the directory containing the config file.
func configDir(configPath string) string {
	if configPath == "" {
		cwd, _ := os.Getwd()
		return cwd
	}
	return filepath.Dir(configPath)
}
