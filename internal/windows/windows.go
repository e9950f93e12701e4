// Package windows tracks the windows opened from cards: one per card id,
// stacked by zIndex. Stats windows poll their provider while open and SSH
// windows own a relay session.
package windows

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/sshrelay"
	"github.com/nexusnav/nexusnav/internal/stats"
)

// BaseZIndex is the stacking value below every window.
const BaseZIndex = 1000

// DefaultPollInterval is how often an open stats window refreshes.
const DefaultPollInterval = 30 * time.Second

// Kind is what a window shows.
type Kind string

const (
	KindIframe       Kind = "iframe"
	KindSSH          Kind = "ssh"
	KindEmby         Kind = "emby"
	KindQBittorrent  Kind = "qbittorrent"
	KindTransmission Kind = "transmission"
)

// KindFor returns the window kind for a card type.
func KindFor(t card.Type) Kind {
	switch t {
	case card.TypeSSH:
		return KindSSH
	case card.TypeEmby:
		return KindEmby
	case card.TypeQBittorrent:
		return KindQBittorrent
	case card.TypeTransmission:
		return KindTransmission
	}
	return KindIframe
}

// IsStats reports whether windows of this kind poll a provider.
func (k Kind) IsStats() bool {
	return k == KindEmby || k == KindQBittorrent || k == KindTransmission
}

// ActionType says what Open did.
type ActionType string

const (
	ActionOpened  ActionType = "opened"
	ActionFocused ActionType = "focused"
	ActionNewTab  ActionType = "newtab"
)

// Action is the outcome of Open. URL is set for ActionNewTab.
type Action struct {
	Type     ActionType
	WindowID string
	URL      string
}

// Window is a copy of one open window's state.
type Window struct {
	ID     string
	CardID string
	Title  string
	Icon   string
	Kind   Kind
	URL    string
	ZIndex int
	Card   card.Card

	// Stats windows.
	Stats      stats.Snapshot
	Err        string
	Loading    bool
	Refreshing bool
	Polls      int

	// SSH windows.
	Session *sshrelay.Session
}

// StatsLoader loads a provider snapshot for a card. *stats.Client implements it.
type StatsLoader interface {
	LoadStats(ctx context.Context, c card.Card) (stats.Snapshot, error)
}

// SessionFactory creates the relay session for an SSH window.
type SessionFactory func(c card.Card) *sshrelay.Session

type entry struct {
	win     Window
	cancel  context.CancelFunc
	refresh chan struct{}
	done    chan struct{}
}

// Controller owns the open windows. It is safe for concurrent use.
type Controller struct {
	stats      StatsLoader
	newSession SessionFactory
	interval   time.Duration
	log        logger.Logger
	now        func() time.Time
	onChange   func()

	mu      sync.Mutex
	byCard  map[string]*entry
	maxZ    int
	stopped bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithStats sets the loader used by stats windows.
func WithStats(l StatsLoader) Option {
	return func(c *Controller) { c.stats = l }
}

// WithSessions sets the factory for SSH window sessions.
func WithSessions(f SessionFactory) Option {
	return func(c *Controller) { c.newSession = f }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithClock replaces time.Now, for window ids.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithOnChange is called, without locks held, after any window changes.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// New returns an empty controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		interval: DefaultPollInterval,
		log:      logger.Noop(),
		now:      time.Now,
		byCard:   make(map[string]*entry),
		maxZ:     BaseZIndex,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// Open opens a window for cd or focuses the one already open for it.
// Generic cards with openMode newtab, or auto while health is down, open
// in a new tab instead and get no window.
func (c *Controller) Open(cd card.Card, health probe.Health) (Action, error) {
	kind := KindFor(cd.CardType)
	if kind == KindIframe {
		if cd.OpenMode == card.OpenNewTab || (cd.OpenMode == card.OpenAuto && health.Status == probe.StatusDown) {
			if cd.URL == "" {
				return Action{}, errors.Newf(errors.ErrValidation, "Card %s has no URL", cd.ID)
			}
			c.log.Debug("window %s: opening in new tab (openMode=%s, health=%s)", cd.ID, cd.OpenMode, health.Status)
			return Action{Type: ActionNewTab, URL: cd.URL}, nil
		}
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return Action{}, errors.New(errors.ErrConfig, "Window controller is closed", "")
	}
	if e, ok := c.byCard[cd.ID]; ok {
		c.raiseLocked(e)
		id := e.win.ID
		c.mu.Unlock()
		c.changed()
		return Action{Type: ActionFocused, WindowID: id}, nil
	}
	if kind.IsStats() && c.stats == nil {
		c.mu.Unlock()
		return Action{}, errors.New(errors.ErrConfig, "No stats loader configured", "")
	}

	c.maxZ++
	e := &entry{win: Window{
		ID:     fmt.Sprintf("window-%s-%d", cd.ID, c.now().UnixMilli()),
		CardID: cd.ID,
		Title:  cd.Name,
		Icon:   cd.Icon,
		Kind:   kind,
		URL:    cd.URL,
		ZIndex: c.maxZ,
		Card:   cd,
	}}
	switch {
	case kind == KindSSH && c.newSession != nil:
		e.win.Session = c.newSession(cd)
	case kind.IsStats():
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		e.refresh = make(chan struct{}, 1)
		e.done = make(chan struct{})
		e.win.Loading = true
		go c.poll(ctx, e)
	}
	c.byCard[cd.ID] = e
	id := e.win.ID
	c.mu.Unlock()

	c.log.Info("window %s opened (%s)", id, kind)
	c.changed()
	return Action{Type: ActionOpened, WindowID: id}, nil
}

// raiseLocked puts e above every other window.
func (c *Controller) raiseLocked(e *entry) {
	c.maxZ++
	e.win.ZIndex = c.maxZ
}

func (c *Controller) findLocked(windowID string) *entry {
	for _, e := range c.byCard {
		if e.win.ID == windowID {
			return e
		}
	}
	return nil
}

// Focus raises a window above all others.
func (c *Controller) Focus(windowID string) error {
	c.mu.Lock()
	e := c.findLocked(windowID)
	if e == nil {
		c.mu.Unlock()
		return errors.Newf(errors.ErrNotFound, "Window %s is not open", windowID)
	}
	c.raiseLocked(e)
	c.mu.Unlock()
	c.changed()
	return nil
}

// FocusNext raises the bottom-most window, cycling through all of them.
func (c *Controller) FocusNext() (Window, bool) {
	c.mu.Lock()
	var bottom *entry
	for _, e := range c.byCard {
		if bottom == nil || e.win.ZIndex < bottom.win.ZIndex {
			bottom = e
		}
	}
	if bottom == nil {
		c.mu.Unlock()
		return Window{}, false
	}
	c.raiseLocked(bottom)
	w := bottom.win
	c.mu.Unlock()
	c.changed()
	return w, true
}

// Top returns the focused window.
func (c *Controller) Top() (Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var top *entry
	for _, e := range c.byCard {
		if top == nil || e.win.ZIndex > top.win.ZIndex {
			top = e
		}
	}
	if top == nil {
		return Window{}, false
	}
	return top.win, true
}

// Get returns the window open for cardID.
func (c *Controller) Get(cardID string) (Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byCard[cardID]
	if !ok {
		return Window{}, false
	}
	return e.win, true
}

// Windows returns every open window, bottom first.
func (c *Controller) Windows() []Window {
	c.mu.Lock()
	out := make([]Window, 0, len(c.byCard))
	for _, e := range c.byCard {
		out = append(out, e.win)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// Refresh asks a stats window to poll now. It is a no-op for other kinds.
func (c *Controller) Refresh(windowID string) error {
	c.mu.Lock()
	e := c.findLocked(windowID)
	c.mu.Unlock()
	if e == nil {
		return errors.Newf(errors.ErrNotFound, "Window %s is not open", windowID)
	}
	if e.refresh != nil {
		select {
		case e.refresh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Close stops a window's polling and SSH session and removes it.
func (c *Controller) Close(windowID string) error {
	c.mu.Lock()
	e := c.findLocked(windowID)
	if e != nil {
		delete(c.byCard, e.win.CardID)
	}
	c.mu.Unlock()
	if e == nil {
		return errors.Newf(errors.ErrNotFound, "Window %s is not open", windowID)
	}
	c.dispose(e)
	c.log.Info("window %s closed", windowID)
	c.changed()
	return nil
}

// CloseAll closes every window. The controller stays usable.
func (c *Controller) CloseAll() {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.byCard))
	for id, e := range c.byCard {
		entries = append(entries, e)
		delete(c.byCard, id)
	}
	c.mu.Unlock()
	for _, e := range entries {
		c.dispose(e)
	}
	if len(entries) > 0 {
		c.changed()
	}
}

// Shutdown closes every window and refuses new ones.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.CloseAll()
}

// dispose cancels polling, waits for the poller to exit and closes the session.
func (c *Controller) dispose(e *entry) {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	if e.win.Session != nil {
		e.win.Session.Close()
	}
}

// poll fetches on open and then on every tick or refresh request. One
// request is in flight at a time; a failure keeps the previous snapshot.
func (c *Controller) poll(ctx context.Context, e *entry) {
	defer close(e.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	first := true
	for {
		c.fetch(ctx, e, first)
		first = false
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.refresh:
		}
	}
}

func (c *Controller) fetch(ctx context.Context, e *entry, first bool) {
	c.mu.Lock()
	cd := e.win.Card
	if !first {
		e.win.Refreshing = true
	}
	c.mu.Unlock()

	snap, err := c.stats.LoadStats(ctx, cd)
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	e.win.Loading = false
	e.win.Refreshing = false
	e.win.Polls++
	if err != nil {
		e.win.Err = errors.Public(err)
		c.log.Warn("window %s: stats refresh failed: %s", e.win.ID, e.win.Err)
	} else {
		e.win.Stats = snap
		e.win.Err = ""
	}
	c.mu.Unlock()
	c.changed()
}
