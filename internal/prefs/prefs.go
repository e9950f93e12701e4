// Package prefs keeps per-user client preferences: the runtime network mode,
// the selected search engine, the server to talk to and its session cookie.
package prefs

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
)

const (
	keyNetworkMode  = "network_mode"
	keySearchEngine = "search_engine"
	keyServer       = "server"
	keySession      = "session"

	// FileName is the preferences file inside the user config directory.
	FileName = "prefs.yaml"
)

// Prefs is a snapshot of the stored preferences.
type Prefs struct {
	NetworkMode  card.NetworkMode `mapstructure:"network_mode"`
	SearchEngine string           `mapstructure:"search_engine"`
	Server       string           `mapstructure:"server"`
	Session      string           `mapstructure:"session"`
}

// Store reads and writes preferences. Core packages never import it; the
// CLI and dashboard pass the values they need.
type Store interface {
	Get() (Prefs, error)
	SetNetworkMode(mode card.NetworkMode) error
	SetSearchEngine(id string) error
	SetServer(url string) error
	SetSession(token string) error
}

// CycleNetworkMode steps auto → lan → wan → auto.
func CycleNetworkMode(m card.NetworkMode) card.NetworkMode {
	switch m {
	case card.NetworkAuto:
		return card.NetworkLAN
	case card.NetworkLAN:
		return card.NetworkWAN
	default:
		return card.NetworkAuto
	}
}

// PickEngine returns saved when it is one of ids, else fallback, else the
// first id.
func PickEngine(saved, fallback string, ids []string) string {
	has := func(id string) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	}
	switch {
	case saved != "" && has(saved):
		return saved
	case fallback != "" && has(fallback):
		return fallback
	case len(ids) > 0:
		return ids[0]
	}
	return ""
}

// DefaultPath is prefs.yaml under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot locate the user config directory",
			"Set XDG_CONFIG_HOME or HOME.")
	}
	return filepath.Join(dir, "nexusnav", FileName), nil
}

// FileStore keeps preferences in a yaml file through viper.
type FileStore struct {
	mu   sync.Mutex
	path string
	v    *viper.Viper
}

// Open reads path if it exists. A missing file is created on the first Set.
func Open(path string) (*FileStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	// The file holds a session token.
	v.SetConfigPermissions(0o600)
	v.SetDefault(keyNetworkMode, string(card.NetworkAuto))
	v.SetDefault(keySearchEngine, "")
	v.SetDefault(keyServer, "")
	v.SetDefault(keySession, "")

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot read preferences: "+path,
				"Delete the file to start over.")
		}
	}
	return &FileStore{path: path, v: v}, nil
}

// Path is the backing file.
func (s *FileStore) Path() string { return s.path }

// Get implements Store. Unknown network modes read as auto.
func (s *FileStore) Get() (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p Prefs
	if err := s.v.Unmarshal(&p); err != nil {
		return Prefs{}, errors.WrapWithCode(err, errors.ErrConfig, "Invalid preferences file", "")
	}
	if mode, err := card.ParseNetworkMode(string(p.NetworkMode)); err == nil {
		p.NetworkMode = mode
	} else {
		p.NetworkMode = card.NetworkAuto
	}
	return p, nil
}

// SetNetworkMode implements Store.
func (s *FileStore) SetNetworkMode(mode card.NetworkMode) error {
	m, err := card.ParseNetworkMode(string(mode))
	if err != nil {
		return err
	}
	return s.set(keyNetworkMode, string(m))
}

// SetSearchEngine implements Store.
func (s *FileStore) SetSearchEngine(id string) error {
	return s.set(keySearchEngine, id)
}

// SetServer implements Store.
func (s *FileStore) SetServer(url string) error {
	return s.set(keyServer, url)
}

// SetSession implements Store. An empty token forgets the session.
func (s *FileStore) SetSession(token string) error {
	return s.set(keySession, token)
}

func (s *FileStore) set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot create "+filepath.Dir(s.path), "")
	}
	s.v.Set(key, value)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot save preferences: "+s.path,
			"Check the directory permissions.")
	}
	return nil
}

// Memory is a Store for tests and for runs without a writable home.
type Memory struct {
	mu sync.Mutex
	p  Prefs
}

// NewMemory returns a Memory store holding p.
func NewMemory(p Prefs) *Memory {
	if p.NetworkMode == "" {
		p.NetworkMode = card.NetworkAuto
	}
	return &Memory{p: p}
}

// Get implements Store.
func (m *Memory) Get() (Prefs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.p, nil
}

// SetNetworkMode implements Store.
func (m *Memory) SetNetworkMode(mode card.NetworkMode) error {
	parsed, err := card.ParseNetworkMode(string(mode))
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.p.NetworkMode = parsed
	m.mu.Unlock()
	return nil
}

// SetSearchEngine implements Store.
func (m *Memory) SetSearchEngine(id string) error {
	m.mu.Lock()
	m.p.SearchEngine = id
	m.mu.Unlock()
	return nil
}

// SetServer implements Store.
func (m *Memory) SetServer(url string) error {
	m.mu.Lock()
	m.p.Server = url
	m.mu.Unlock()
	return nil
}

// SetSession implements Store.
func (m *Memory) SetSession(token string) error {
	m.mu.Lock()
	m.p.Session = token
	m.mu.Unlock()
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*Memory)(nil)
)
