package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config is the nexusnav.yaml file shared by the server and the client commands.
type Config struct {
	Version int           `yaml:"version" mapstructure:"version"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Nav     NavConfig     `yaml:"nav" mapstructure:"nav"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Probe   ProbeConfig   `yaml:"probe" mapstructure:"probe"`
	Stats   StatsConfig   `yaml:"stats" mapstructure:"stats"`
	SSH     SSHConfig     `yaml:"ssh" mapstructure:"ssh"`
	Client  ClientConfig  `yaml:"client" mapstructure:"client"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`

	// Path is the file the config was read from, empty for pure defaults.
	Path string `yaml:"-" mapstructure:"-"`
}

// ServerConfig controls `nexusnav serve`.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" mapstructure:"addr"`

	// AllowedOrigins feeds the CORS and websocket origin checks. "*" allows any.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// StorageConfig locates the sqlite database.
type StorageConfig struct {
	Path string `yaml:"path" mapstructure:"path"`

	// RetryFor is how long opening keeps retrying a locked database.
	RetryFor time.Duration `yaml:"retry_for" mapstructure:"retry_for"`
}

// NavConfig locates the nav and system files.
type NavConfig struct {
	NavPath    string `yaml:"nav_path" mapstructure:"nav_path"`
	SystemPath string `yaml:"system_path" mapstructure:"system_path"`

	// AdminPassword seeds a missing system file. It is hashed before it is written.
	AdminPassword string `yaml:"admin_password" mapstructure:"admin_password"`

	// PruneOnStart removes database rows missing from the nav file at startup.
	PruneOnStart bool `yaml:"prune_on_start" mapstructure:"prune_on_start"`
}

// AuthConfig holds the verify token signing key.
type AuthConfig struct {
	// TokenSecret signs config verify tokens. Empty means a random key per process.
	TokenSecret string `yaml:"token_secret" mapstructure:"token_secret"`
}

// ProbeConfig controls the reachability prober.
type ProbeConfig struct {
	// Schedule is a cron spec; "@every 30s" style descriptors are accepted.
	Schedule  string        `yaml:"schedule" mapstructure:"schedule"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Threshold int           `yaml:"threshold" mapstructure:"threshold"`
}

// StatsConfig controls provider stats loading.
type StatsConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// SSHConfig controls the relay's outbound SSH connections.
type SSHConfig struct {
	// ConfigPath is the ssh config used to resolve host aliases.
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`

	// KnownHostsPath turns on host key verification.
	KnownHostsPath string        `yaml:"known_hosts_path" mapstructure:"known_hosts_path"`
	DialTimeout    time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// BufferBytes caps the client-side terminal buffer.
	BufferBytes int `yaml:"buffer_bytes" mapstructure:"buffer_bytes"`
}

// ClientConfig points the CLI and dashboard at a server.
type ClientConfig struct {
	Server  string        `yaml:"server" mapstructure:"server"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LogConfig selects the server log level and format.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Path:     "data/nexusnav.db",
			RetryFor: 15 * time.Second,
		},
		Nav: NavConfig{
			NavPath:       "config/nav.yaml",
			SystemPath:    "config/system.yaml",
			AdminPassword: "admin",
			PruneOnStart:  true,
		},
		Probe: ProbeConfig{
			Schedule:  "@every 30s",
			Timeout:   5 * time.Second,
			Threshold: 2,
		},
		Stats: StatsConfig{
			Timeout:      8 * time.Second,
			PollInterval: 30 * time.Second,
		},
		SSH: SSHConfig{
			DialTimeout: 10 * time.Second,
			BufferBytes: 256 << 10,
		},
		Client: ClientConfig{
			Server:  "http://127.0.0.1:8080",
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
