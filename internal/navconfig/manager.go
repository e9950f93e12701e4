// Package navconfig keeps the nav and system files in step with the
// database.
//
// The database is the source of truth for groups and cards. The nav file is
// re-imported only when its content hash differs from the one recorded at the
// last import or export, so edits made through the API are written back to
// the file without bouncing back into the database. The system file holds
// the admin settings; its last imported copy lives in the meta table.
package navconfig

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
)

// Meta keys written by the manager.
const (
	MetaNavHash      = "nav_hash"
	MetaNavVersion   = "nav_version"
	MetaSystemHash   = "system_hash"
	MetaSystemConfig = "system_config_json"
)

// DefaultNavVersion is written to a nav file that has none.
const DefaultNavVersion = "1"

// DefaultAdminPassword seeds a missing system file.
const DefaultAdminPassword = "admin"

// Store is the part of storage the manager needs. *storage.Store implements it.
type Store interface {
	Nav(ctx context.Context) ([]card.Group, []card.Card, error)
	ReplaceNav(ctx context.Context, groups []card.Group, cards []card.Card, prune bool) error
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

// ImportResult reports whether a reload found new content.
type ImportResult struct {
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

// NavCounts is what ImportNav replaced.
type NavCounts struct {
	Groups int `json:"groups"`
	Cards  int `json:"cards"`
}

// Options configures a Manager.
type Options struct {
	NavPath    string
	SystemPath string
	// AdminPassword seeds a missing system file. Empty selects DefaultAdminPassword.
	AdminPassword string
	Logger        logger.Logger
}

// Manager imports and exports the config files. All writes are serialized.
type Manager struct {
	store Store
	opts  Options
	log   logger.Logger

	mu sync.Mutex

	sysMu  sync.RWMutex
	system *System
}

// New returns a manager. Nothing is read until Import.
func New(store Store, opts Options) (*Manager, error) {
	if opts.NavPath == "" || opts.SystemPath == "" {
		return nil, errors.New(errors.ErrConfig, "Config file paths are not set",
			"Set nav.nav_path and nav.system_path in the config file.")
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = DefaultAdminPassword
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	return &Manager{store: store, opts: opts, log: opts.Logger}, nil
}

// NavPath returns the nav file location.
func (m *Manager) NavPath() string { return m.opts.NavPath }

// SystemPath returns the system file location.
func (m *Manager) SystemPath() string { return m.opts.SystemPath }

// Import loads both files. The nav file replaces the database contents when
// its hash changed or prune is set; prune also removes groups and cards the
// file does not list. Missing files are created: the nav file from the
// database and the system file from defaults.
func (m *Manager) Import(ctx context.Context, prune bool) (ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	navBytes, err := readOptional(m.opts.NavPath)
	if err != nil {
		return ImportResult{}, err
	}
	if navBytes == nil {
		m.log.Info("nav file %s not found, writing it from the database", m.opts.NavPath)
		if navBytes, err = m.exportLocked(ctx); err != nil {
			return ImportResult{}, err
		}
	}
	sysBytes, err := readOptional(m.opts.SystemPath)
	if err != nil {
		return ImportResult{}, err
	}
	if sysBytes == nil {
		if sysBytes, err = m.seedSystem(); err != nil {
			return ImportResult{}, err
		}
	}

	nav, err := parseNav(navBytes, FormatOf(m.opts.NavPath))
	if err != nil {
		return ImportResult{}, err
	}
	sys, err := parseSystem(sysBytes, FormatOf(m.opts.SystemPath))
	if err != nil {
		return ImportResult{}, err
	}

	navHash, sysHash := Hash(navBytes), Hash(sysBytes)
	navChanged, err := m.hashChanged(ctx, MetaNavHash, navHash)
	if err != nil {
		return ImportResult{}, err
	}
	sysChanged, err := m.hashChanged(ctx, MetaSystemHash, sysHash)
	if err != nil {
		return ImportResult{}, err
	}

	if navChanged || prune {
		if err := m.store.ReplaceNav(ctx, nav.Groups, nav.Cards, prune); err != nil {
			return ImportResult{}, err
		}
		if err := m.recordNav(ctx, navHash, nav.Version); err != nil {
			return ImportResult{}, err
		}
	}
	_, stored, err := m.store.GetMeta(ctx, MetaSystemConfig)
	if err != nil {
		return ImportResult{}, err
	}
	if sysChanged || !stored {
		if err := m.recordSystem(ctx, sysHash, sys); err != nil {
			return ImportResult{}, err
		}
	}
	m.setSystem(sys)

	changed := navChanged || sysChanged
	res := ImportResult{Changed: changed, Message: "Config hash unchanged"}
	if changed {
		res.Message = "Config imported"
	}
	m.log.Info("config import: nav_changed=%t system_changed=%t prune=%t groups=%d cards=%d",
		navChanged, sysChanged, prune, len(nav.Groups), len(nav.Cards))
	return res, nil
}

func (m *Manager) seedSystem() ([]byte, error) {
	sys := DefaultSystem()
	h, err := HashPassword(m.opts.AdminPassword)
	if err != nil {
		return nil, err
	}
	sys.AdminPassword = h
	data, err := Encode(sys, FormatOf(m.opts.SystemPath))
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(m.opts.SystemPath, data); err != nil {
		return nil, err
	}
	m.log.Warn("system file %s not found, created it with the default admin password; change it in settings", m.opts.SystemPath)
	return data, nil
}

func parseNav(data []byte, format Format) (Nav, error) {
	var nav Nav
	if err := Decode(data, format, &nav); err != nil {
		return Nav{}, err
	}
	if err := NormalizeNav(&nav); err != nil {
		return Nav{}, err
	}
	if err := ValidateNav(nav); err != nil {
		return Nav{}, err
	}
	return nav, nil
}

func parseSystem(data []byte, format Format) (System, error) {
	sys := DefaultSystem()
	if err := Decode(data, format, &sys); err != nil {
		return System{}, err
	}
	NormalizeSystem(&sys)
	if err := ValidateSystem(sys); err != nil {
		return System{}, err
	}
	return sys, nil
}

func (m *Manager) hashChanged(ctx context.Context, key, hash string) (bool, error) {
	prev, ok, err := m.store.GetMeta(ctx, key)
	if err != nil {
		return false, err
	}
	return !ok || prev != hash, nil
}

func (m *Manager) recordNav(ctx context.Context, hash, version string) error {
	if err := m.store.SetMeta(ctx, MetaNavHash, hash); err != nil {
		return err
	}
	return m.store.SetMeta(ctx, MetaNavVersion, version)
}

func (m *Manager) recordSystem(ctx context.Context, hash string, sys System) error {
	raw, err := json.Marshal(sys)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot encode system config", "")
	}
	if err := m.store.SetMeta(ctx, MetaSystemHash, hash); err != nil {
		return err
	}
	return m.store.SetMeta(ctx, MetaSystemConfig, string(raw))
}

func (m *Manager) setSystem(sys System) {
	m.sysMu.Lock()
	m.system = &sys
	m.sysMu.Unlock()
}

// System returns the current system settings: the cached copy, else the
// last imported copy, else the system file.
func (m *Manager) System(ctx context.Context) (System, error) {
	m.sysMu.RLock()
	cached := m.system
	m.sysMu.RUnlock()
	if cached != nil {
		return cloneSystem(*cached), nil
	}

	raw, ok, err := m.store.GetMeta(ctx, MetaSystemConfig)
	if err != nil {
		return System{}, err
	}
	var sys System
	if ok {
		sys, err = parseSystem([]byte(raw), FormatJSON)
	} else {
		var data []byte
		if data, err = readOptional(m.opts.SystemPath); err == nil && data == nil {
			return System{}, errors.New(errors.ErrConfig, "System config is not loaded", "Run a config reload.")
		}
		if err == nil {
			sys, err = parseSystem(data, FormatOf(m.opts.SystemPath))
		}
	}
	if err != nil {
		return System{}, err
	}
	m.setSystem(sys)
	return cloneSystem(sys), nil
}

func cloneSystem(s System) System {
	s.SearchEngines = append([]SearchEngine(nil), s.SearchEngines...)
	return s
}

// UpdateSystem applies fn to the current settings, writes the system file and
// records it. Nothing changes when fn or validation fails.
func (m *Manager) UpdateSystem(ctx context.Context, fn func(*System) error) (System, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sys, err := m.System(ctx)
	if err != nil {
		return System{}, err
	}
	if err := fn(&sys); err != nil {
		return System{}, err
	}
	NormalizeSystem(&sys)
	if err := ValidateSystem(sys); err != nil {
		return System{}, err
	}
	data, err := Encode(sys, FormatOf(m.opts.SystemPath))
	if err != nil {
		return System{}, err
	}
	prev, err := readOptional(m.opts.SystemPath)
	if err != nil {
		return System{}, err
	}
	if err := writeAtomic(m.opts.SystemPath, data); err != nil {
		return System{}, err
	}
	if err := m.recordSystem(ctx, Hash(data), sys); err != nil {
		if rerr := restore(m.opts.SystemPath, prev); rerr != nil {
			m.log.Error("system file rollback failed: %v", rerr)
		}
		return System{}, err
	}
	m.setSystem(sys)
	m.log.Info("system config updated")
	return cloneSystem(sys), nil
}

// Mutate runs a database write and then exports the nav file, serialized
// with imports.
func (m *Manager) Mutate(ctx context.Context, write func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := write(ctx); err != nil {
		return err
	}
	if _, err := m.exportLocked(ctx); err != nil {
		m.log.Error("nav export after update failed: %v", err)
		return err
	}
	return nil
}

// Document returns the database contents as a nav file body.
func (m *Manager) Document(ctx context.Context) (Nav, error) {
	groups, cards, err := m.store.Nav(ctx)
	if err != nil {
		return Nav{}, err
	}
	version, ok, err := m.store.GetMeta(ctx, MetaNavVersion)
	if err != nil {
		return Nav{}, err
	}
	if !ok || version == "" {
		version = DefaultNavVersion
	}
	return Nav{Version: version, Groups: groups, Cards: cards}, nil
}

// ExportNav writes the database contents to the nav file.
func (m *Manager) ExportNav(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.exportLocked(ctx)
	return err
}

func (m *Manager) exportLocked(ctx context.Context) ([]byte, error) {
	nav, err := m.Document(ctx)
	if err != nil {
		return nil, err
	}
	data, err := Encode(nav, FormatOf(m.opts.NavPath))
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(m.opts.NavPath, data); err != nil {
		return nil, err
	}
	if err := m.recordNav(ctx, Hash(data), nav.Version); err != nil {
		return nil, err
	}
	m.log.Debug("nav exported to %s (%d groups, %d cards)", m.opts.NavPath, len(nav.Groups), len(nav.Cards))
	return data, nil
}

// ImportNav replaces every group and card with nav and writes the nav file.
// When the database write fails the previous file is put back.
func (m *Manager) ImportNav(ctx context.Context, nav Nav) (NavCounts, error) {
	if nav.Groups == nil || nav.Cards == nil {
		return NavCounts{}, errors.New(errors.ErrValidation, "groups and cards are required", "")
	}
	if err := NormalizeNav(&nav); err != nil {
		return NavCounts{}, err
	}
	if err := ValidateNav(nav); err != nil {
		return NavCounts{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if nav.Version == "" {
		v, ok, err := m.store.GetMeta(ctx, MetaNavVersion)
		if err != nil {
			return NavCounts{}, err
		}
		nav.Version = DefaultNavVersion
		if ok && v != "" {
			nav.Version = v
		}
	}
	data, err := Encode(nav, FormatOf(m.opts.NavPath))
	if err != nil {
		return NavCounts{}, err
	}
	prev, err := readOptional(m.opts.NavPath)
	if err != nil {
		return NavCounts{}, err
	}
	if err := writeAtomic(m.opts.NavPath, data); err != nil {
		return NavCounts{}, err
	}
	err = m.store.ReplaceNav(ctx, nav.Groups, nav.Cards, true)
	if err == nil {
		err = m.recordNav(ctx, Hash(data), nav.Version)
	}
	if err != nil {
		if rerr := restore(m.opts.NavPath, prev); rerr != nil {
			m.log.Error("nav file rollback failed: %v", rerr)
		}
		return NavCounts{}, err
	}
	m.log.Info("nav imported: %d groups, %d cards", len(nav.Groups), len(nav.Cards))
	return NavCounts{Groups: len(nav.Groups), Cards: len(nav.Cards)}, nil
}
