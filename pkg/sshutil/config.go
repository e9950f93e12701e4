package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
)

// HostEntry is what ~/.ssh/config says about one alias.
type HostEntry struct {
	Alias        string
	Hostname     string
	User         string
	Port         int
	IdentityFile string

	// MatchLine is the line of the first Match directive, 0 if none.
	// Entries after it are invisible to the parser.
	MatchLine int
}

// Found reports whether the config had any setting for the alias.
func (h HostEntry) Found() bool {
	return h.Hostname != "" || h.User != "" || h.Port != 0 || h.IdentityFile != ""
}

// DefaultConfigPath is ~/.ssh/config.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

var (
	configCacheMu sync.Mutex
	configCache   = map[string]cachedConfig{}
)

type cachedConfig struct {
	modTime   int64
	cfg       *ssh_config.Config
	matchLine int
}

// ResolveHost looks alias up in the ssh config at path. A missing or
// unparseable file yields an empty entry and no error.
func ResolveHost(path, alias string) HostEntry {
	entry := HostEntry{Alias: alias}
	cfg, matchLine := loadConfig(path)
	entry.MatchLine = matchLine
	if cfg == nil {
		return entry
	}

	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		entry.Hostname = hostname
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		entry.User = user
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 && n <= 65535 {
			entry.Port = n
		}
	}
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		entry.IdentityFile = expandPath(identity)
	}
	return entry
}

// Apply fills the gaps of t from the entry. An explicit non-default port or
// a non-blank user on t wins over the config.
func (h HostEntry) Apply(t Target) Target {
	if h.Hostname != "" {
		t.Host = h.Hostname
	}
	if h.Port != 0 && (t.Port == 0 || t.Port == 22) {
		t.Port = h.Port
	}
	if t.Port <= 0 || t.Port > 65535 {
		t.Port = 22
	}
	if strings.TrimSpace(t.User) == "" {
		t.User = h.User
	}
	return t
}

func loadConfig(path string) (*ssh_config.Config, int) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0
	}

	configCacheMu.Lock()
	defer configCacheMu.Unlock()
	if c, ok := configCache[path]; ok && c.modTime == info.ModTime().UnixNano() {
		return c.cfg, c.matchLine
	}

	content, matchLine, err := preprocessSSHConfig(path)
	if err != nil {
		return nil, 0
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, matchLine
	}
	configCache[path] = cachedConfig{modTime: info.ModTime().UnixNano(), cfg: cfg, matchLine: matchLine}
	return cfg, matchLine
}

// preprocessSSHConfig returns the config content up to the first Match
// directive, which ssh_config cannot parse, and the 1-based line of that
// directive (0 if none).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	result := make([]string, 0, len(lines))
	matchLine := 0
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}
	return []byte(strings.Join(result, "\n")), matchLine, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
