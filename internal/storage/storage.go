// Package storage persists groups, cards and a small key/value meta table in
// SQLite through gorm. It is the source of truth for the nav data; the nav
// file is an import/export format on top of it.
package storage

import (
	"context"
	stderrors "errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options configures Open.
type Options struct {
	Path   string
	Logger logger.Logger

	// RetryFor bounds how long Open keeps retrying while the file is locked.
	// Zero selects 15 seconds.
	RetryFor time.Duration
}

// Store is the gorm-backed store. It is safe for concurrent use.
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// gormWriter forwards gorm's own log lines to our logger.
type gormWriter struct{ log logger.Logger }

func (w gormWriter) Printf(format string, args ...interface{}) { w.log.Warn(format, args...) }

// Open opens (creating if needed) the database at opts.Path and migrates it.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	if opts.Path == "" {
		return nil, errors.New(errors.ErrConfig, "Database path is empty",
			"Set storage.path in the config file.")
	}
	if opts.RetryFor <= 0 {
		opts.RetryFor = 15 * time.Second
	}

	gl := gormlogger.New(gormWriter{opts.Logger}, gormlogger.Config{
		SlowThreshold:             time.Second,
		IgnoreRecordNotFoundError: true,
		LogLevel:                  gormlogger.Error,
	})

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.Multiplier = 2
	bo.MaxElapsedTime = opts.RetryFor

	var db *gorm.DB
	attempt := func() error {
		d, err := gorm.Open(sqlite.Open(opts.Path), &gorm.Config{Logger: gl})
		if err == nil {
			if opts.Path == MemoryPath {
				// Every pooled connection would get its own empty database.
				if sqlDB, derr := d.DB(); derr == nil {
					sqlDB.SetMaxOpenConns(1)
				}
			}
			err = d.AutoMigrate(&groupRow{}, &cardRow{}, &metaRow{})
		}
		if err == nil && opts.Path != MemoryPath {
			tune(d, opts.Logger)
		}
		if err != nil {
			if d != nil {
				if sqlDB, derr := d.DB(); derr == nil {
					_ = sqlDB.Close()
				}
			}
			if isLocked(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		db = d
		return nil
	}
	notify := func(err error, wait time.Duration) {
		opts.Logger.Warn("database %s is busy, retrying in %s: %v", opts.Path, wait, err)
	}
	if err := backoff.RetryNotify(attempt, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrStorage,
			"Could not open database "+opts.Path,
			"Check that the directory exists and that no other process holds the file.")
	}

	opts.Logger.Debug("database %s ready", opts.Path)
	return &Store{db: db, log: opts.Logger}, nil
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// tune applies the file database pragmas. Failures only cost performance.
func tune(db *gorm.DB, log logger.Logger) {
	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			log.Warn("%s failed: %v", p, err)
		}
	}
}

func isLocked(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func storageErr(err error, message string) error {
	return errors.WrapWithCode(err, errors.ErrStorage, message, "")
}

func isNotFound(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}

// ListGroups returns all groups by orderIndex, then name.
func (s *Store) ListGroups(ctx context.Context) ([]card.Group, error) {
	var rows []groupRow
	if err := s.db.WithContext(ctx).Order("order_index ASC").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, storageErr(err, "Failed to list groups")
	}
	out := make([]card.Group, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.group())
	}
	return out, nil
}

func exists(db *gorm.DB, model interface{}, id string) (bool, error) {
	var n int64
	if err := db.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, storageErr(err, "Failed to query database")
	}
	return n > 0, nil
}

// CreateGroup inserts g. An empty id is derived from the name.
func (s *Store) CreateGroup(ctx context.Context, g card.Group) (card.Group, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return card.Group{}, errors.New(errors.ErrValidation, "Group name is required", "")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g.ID = strings.TrimSpace(g.ID)
		if g.ID == "" {
			id, err := uniqueSlug(tx, &groupRow{}, g.Name, "group")
			if err != nil {
				return err
			}
			g.ID = id
		} else if ok, err := exists(tx, &groupRow{}, g.ID); err != nil {
			return err
		} else if ok {
			return errors.Newf(errors.ErrValidation, "Group already exists: %s", g.ID)
		}
		row := toGroupRow(g)
		if err := tx.Create(&row).Error; err != nil {
			return storageErr(err, "Failed to create group")
		}
		return nil
	})
	if err != nil {
		return card.Group{}, err
	}
	s.log.Info("group %s created", g.ID)
	return g, nil
}

// uniqueSlug returns slug(name), or slug-N for the first N that is free.
func uniqueSlug(tx *gorm.DB, model interface{}, name, fallback string) (string, error) {
	base := card.Slug(name, fallback)
	candidate := base
	for n := 2; ; n++ {
		ok, err := exists(tx, model, candidate)
		if err != nil {
			return "", err
		}
		if !ok {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

// UpdateGroup replaces the name and orderIndex of an existing group.
func (s *Store) UpdateGroup(ctx context.Context, g card.Group) (card.Group, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return card.Group{}, errors.New(errors.ErrValidation, "Group name is required", "")
	}
	res := s.db.WithContext(ctx).Model(&groupRow{}).Where("id = ?", g.ID).
		Updates(map[string]interface{}{"name": g.Name, "order_index": g.OrderIndex, "updated_at": time.Now()})
	if res.Error != nil {
		return card.Group{}, storageErr(res.Error, "Failed to update group")
	}
	if res.RowsAffected == 0 {
		return card.Group{}, errors.Newf(errors.ErrNotFound, "Group not found: %s", g.ID)
	}
	return g, nil
}

// DeleteGroup removes a group and every card in it.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("group_id = ?", id).Delete(&cardRow{})
		if res.Error != nil {
			return storageErr(res.Error, "Failed to delete group cards")
		}
		removed = res.RowsAffected
		res = tx.Where("id = ?", id).Delete(&groupRow{})
		if res.Error != nil {
			return storageErr(res.Error, "Failed to delete group")
		}
		if res.RowsAffected == 0 {
			return errors.Newf(errors.ErrNotFound, "Group not found: %s", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("group %s deleted with %d cards", id, removed)
	return nil
}

// CardFilter narrows ListCards. Zero values match everything.
type CardFilter struct {
	GroupID string
	// Query matches name, description or any url, case-insensitively.
	Query   string
	Enabled *bool
}

// ListCards returns the matching cards by orderIndex, then name.
func (s *Store) ListCards(ctx context.Context, f CardFilter) ([]card.Card, error) {
	q := s.db.WithContext(ctx).Model(&cardRow{})
	if id := strings.TrimSpace(f.GroupID); id != "" {
		q = q.Where("group_id = ?", id)
	}
	if f.Enabled != nil {
		q = q.Where("enabled = ?", *f.Enabled)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(url) LIKE ? OR LOWER(lan_url) LIKE ? OR LOWER(wan_url) LIKE ?",
			like, like, like, like, like)
	}
	var rows []cardRow
	if err := q.Order("order_index ASC").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, storageErr(err, "Failed to list cards")
	}
	out := make([]card.Card, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.card())
	}
	return out, nil
}

// GetCard returns one card, or an ErrNotFound error.
func (s *Store) GetCard(ctx context.Context, id string) (card.Card, error) {
	var row cardRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if isNotFound(err) {
		return card.Card{}, errors.Newf(errors.ErrNotFound, "Card not found: %s", id)
	}
	if err != nil {
		return card.Card{}, storageErr(err, "Failed to load card")
	}
	return row.card(), nil
}

// CardExists reports whether a card id is taken.
func (s *Store) CardExists(ctx context.Context, id string) (bool, error) {
	return exists(s.db.WithContext(ctx), &cardRow{}, id)
}

// prepare normalizes and validates c and checks its group.
func prepare(tx *gorm.DB, c card.Card) (card.Card, error) {
	c, err := card.Normalize(c)
	if err != nil {
		return c, err
	}
	if err := card.Validate(c); err != nil {
		return c, err
	}
	ok, err := exists(tx, &groupRow{}, c.GroupID)
	if err != nil {
		return c, err
	}
	if !ok {
		return c, errors.Newf(errors.ErrValidation, "Group not found: %s", c.GroupID)
	}
	return c, nil
}

// CreateCard normalizes, validates and inserts c. An empty id is generated
// from the name.
func (s *Store) CreateCard(ctx context.Context, c card.Card) (card.Card, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if c, err = prepare(tx, c); err != nil {
			return err
		}
		if c.ID == "" {
			var lookupErr error
			c.ID = card.GenerateID(c.Name, "card", func(id string) bool {
				ok, err := exists(tx, &cardRow{}, id)
				if err != nil {
					lookupErr = err
				}
				return ok
			})
			if lookupErr != nil {
				return lookupErr
			}
		} else if ok, err := exists(tx, &cardRow{}, c.ID); err != nil {
			return err
		} else if ok {
			return errors.Newf(errors.ErrValidation, "Card already exists: %s", c.ID)
		}
		row := toCardRow(c)
		if err := tx.Create(&row).Error; err != nil {
			return storageErr(err, "Failed to create card")
		}
		return nil
	})
	if err != nil {
		return card.Card{}, err
	}
	s.log.Info("card %s created in group %s", c.ID, c.GroupID)
	return c, nil
}

// UpdateCard replaces every field of an existing card.
func (s *Store) UpdateCard(ctx context.Context, c card.Card) (card.Card, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &cardRow{}, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Newf(errors.ErrNotFound, "Card not found: %s", c.ID)
		}
		if c, err = prepare(tx, c); err != nil {
			return err
		}
		row := toCardRow(c)
		if err := tx.Save(&row).Error; err != nil {
			return storageErr(err, "Failed to update card")
		}
		return nil
	})
	if err != nil {
		return card.Card{}, err
	}
	return c, nil
}

// DeleteCard removes one card.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&cardRow{})
	if res.Error != nil {
		return storageErr(res.Error, "Failed to delete card")
	}
	if res.RowsAffected == 0 {
		return errors.Newf(errors.ErrNotFound, "Card not found: %s", id)
	}
	s.log.Info("card %s deleted", id)
	return nil
}

// UpdateOrder sets orderIndex for each listed card. Either every id exists
// and all are updated, or nothing changes.
func (s *Store) UpdateOrder(ctx context.Context, items []card.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(items))
		seen := make(map[string]bool, len(items))
		for _, it := range items {
			if !seen[it.ID] {
				seen[it.ID] = true
				ids = append(ids, it.ID)
			}
		}
		var n int64
		if err := tx.Model(&cardRow{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
			return storageErr(err, "Failed to query cards")
		}
		if int(n) != len(ids) {
			return errors.New(errors.ErrValidation, "Some cards do not exist", "")
		}
		for _, it := range items {
			if err := tx.Model(&cardRow{}).Where("id = ?", it.ID).Update("order_index", it.OrderIndex).Error; err != nil {
				return storageErr(err, "Failed to update card order")
			}
		}
		return nil
	})
}

// ReplaceNav upserts groups and cards in one transaction. With prune set,
// groups and cards not listed are removed.
func (s *Store) ReplaceNav(ctx context.Context, groups []card.Group, cards []card.Card, prune bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groupIDs := make([]string, 0, len(groups))
		for _, g := range groups {
			row := toGroupRow(g)
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return storageErr(err, "Failed to save group "+g.ID)
			}
			groupIDs = append(groupIDs, g.ID)
		}
		cardIDs := make([]string, 0, len(cards))
		for _, c := range cards {
			row := toCardRow(c)
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return storageErr(err, "Failed to save card "+c.ID)
			}
			cardIDs = append(cardIDs, c.ID)
		}
		if !prune {
			return nil
		}
		if err := pruneExcept(tx, &cardRow{}, "id", cardIDs); err != nil {
			return err
		}
		// Cards of a removed group go with it.
		if err := pruneExcept(tx, &cardRow{}, "group_id", groupIDs); err != nil {
			return err
		}
		return pruneExcept(tx, &groupRow{}, "id", groupIDs)
	})
	if err != nil {
		return err
	}
	s.log.Info("nav replaced: %d groups, %d cards (prune=%t)", len(groups), len(cards), prune)
	return nil
}

func pruneExcept(tx *gorm.DB, model interface{}, column string, keep []string) error {
	q := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	if len(keep) > 0 {
		q = q.Where(column+" NOT IN ?", keep)
	}
	if err := q.Delete(model).Error; err != nil {
		return storageErr(err, "Failed to prune nav data")
	}
	return nil
}

// Nav returns every group and card, both in display order.
func (s *Store) Nav(ctx context.Context) ([]card.Group, []card.Card, error) {
	groups, err := s.ListGroups(ctx)
	if err != nil {
		return nil, nil, err
	}
	cards, err := s.ListCards(ctx, CardFilter{})
	if err != nil {
		return nil, nil, err
	}
	order := make(map[string]int, len(groups))
	for i, g := range groups {
		order[g.ID] = i
	}
	sort.SliceStable(cards, func(i, j int) bool {
		return order[cards[i].GroupID] < order[cards[j].GroupID]
	})
	return groups, cards, nil
}

// GetMeta returns a meta value and whether it was set.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var row metaRow
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if isNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr(err, "Failed to read meta "+key)
	}
	return row.Value, true, nil
}

// SetMeta stores a meta value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	row := metaRow{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return storageErr(err, "Failed to write meta "+key)
	}
	return nil
}
