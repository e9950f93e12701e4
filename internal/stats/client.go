package stats

import (
	"context"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
)

// Provider loads a snapshot straight from the third-party service using the
// credentials stored on the card. One implementation exists per card type.
type Provider interface {
	Kind() card.Type
	Load(ctx context.Context, c card.Card) (Snapshot, error)
}

// TaskRunner is implemented by providers that expose scheduled tasks.
type TaskRunner interface {
	Tasks(ctx context.Context, c card.Card) ([]EmbyTask, error)
	RunTask(ctx context.Context, c card.Card, taskID, taskName string) (EmbyTaskRunResult, error)
}

// Proxy reaches the same data through the NexusNav server, keyed by card id only.
type Proxy interface {
	Stats(ctx context.Context, kind card.Type, cardID string) (Snapshot, error)
	EmbyTasks(ctx context.Context, cardID string) ([]EmbyTask, error)
	RunEmbyTask(ctx context.Context, cardID, taskID string) (EmbyTaskRunResult, error)
}

// Client dispatches to the provider registered for a card's type and falls
// back to the proxy when the direct path fails.
type Client struct {
	providers map[card.Type]Provider
	proxy     Proxy
	timeout   time.Duration
	now       func() time.Time
	log       logger.Logger
	observe   func(kind card.Type, src Source, err error)
}

// Option configures a Client.
type Option func(*Client)

// WithProxy enables the proxy stage.
func WithProxy(p Proxy) Option {
	return func(c *Client) { c.proxy = p }
}

// WithTimeout overrides the per-stage timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithObserver is called after every LoadStats with the outcome.
func WithObserver(fn func(kind card.Type, src Source, err error)) Option {
	return func(c *Client) { c.observe = fn }
}

// NewClient registers providers by kind. Later providers replace earlier ones.
func NewClient(providers []Provider, opts ...Option) *Client {
	c := &Client{
		providers: make(map[card.Type]Provider, len(providers)),
		timeout:   DefaultTimeout,
		now:       time.Now,
		log:       logger.Noop(),
	}
	for _, p := range providers {
		c.providers[p.Kind()] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supports reports whether a provider is registered for kind.
func (c *Client) Supports(kind card.Type) bool {
	_, ok := c.providers[kind]
	return ok
}

// LoadStats returns a stamped snapshot for a provider card. The direct path
// is tried first; any failure there is logged and hidden behind the proxy.
func (c *Client) LoadStats(ctx context.Context, cd card.Card) (Snapshot, error) {
	p, ok := c.providers[cd.CardType]
	if !ok {
		return nil, errors.Newf(errors.ErrValidation, "Card %s has no stats provider (type %s)", cd.ID, cd.CardType)
	}

	direct := func(ctx context.Context) (Snapshot, error) { return p.Load(ctx, cd) }
	var proxy Stage[Snapshot]
	if c.proxy != nil {
		proxy = func(ctx context.Context) (Snapshot, error) { return c.proxy.Stats(ctx, cd.CardType, cd.ID) }
	}

	res, err := Run(ctx, c.timeout, direct, proxy)
	c.logFallback(cd, res.DirectErr, err)
	if c.observe != nil {
		c.observe(cd.CardType, res.Source, err)
	}
	if err != nil {
		return nil, err
	}
	res.Value.Stamp(res.Source, c.now())
	return res.Value, nil
}

// EmbyTasks lists scheduled tasks for an Emby card.
func (c *Client) EmbyTasks(ctx context.Context, cd card.Card) ([]EmbyTask, error) {
	tr, err := c.taskRunner(cd)
	if err != nil {
		return nil, err
	}
	direct := func(ctx context.Context) ([]EmbyTask, error) { return tr.Tasks(ctx, cd) }
	var proxy Stage[[]EmbyTask]
	if c.proxy != nil {
		proxy = func(ctx context.Context) ([]EmbyTask, error) { return c.proxy.EmbyTasks(ctx, cd.ID) }
	}

	res, err := Run(ctx, c.timeout, direct, proxy)
	c.logFallback(cd, res.DirectErr, err)
	return res.Value, err
}

// RunEmbyTask triggers a scheduled task on an Emby card.
func (c *Client) RunEmbyTask(ctx context.Context, cd card.Card, taskID, taskName string) (EmbyTaskRunResult, error) {
	tr, err := c.taskRunner(cd)
	if err != nil {
		return EmbyTaskRunResult{}, err
	}
	direct := func(ctx context.Context) (EmbyTaskRunResult, error) { return tr.RunTask(ctx, cd, taskID, taskName) }
	var proxy Stage[EmbyTaskRunResult]
	if c.proxy != nil {
		proxy = func(ctx context.Context) (EmbyTaskRunResult, error) { return c.proxy.RunEmbyTask(ctx, cd.ID, taskID) }
	}

	res, err := Run(ctx, c.timeout, direct, proxy)
	c.logFallback(cd, res.DirectErr, err)
	if err != nil {
		return EmbyTaskRunResult{}, err
	}
	res.Value.Source = res.Source
	res.Value.UpdatedAt = c.now().UnixMilli()
	return res.Value, nil
}

func (c *Client) taskRunner(cd card.Card) (TaskRunner, error) {
	if cd.CardType != card.TypeEmby {
		return nil, errors.Newf(errors.ErrValidation, "Card %s is not an Emby card", cd.ID)
	}
	p, ok := c.providers[card.TypeEmby]
	if !ok {
		return nil, errors.New(errors.ErrConfig, "Emby provider is not registered", "")
	}
	tr, ok := p.(TaskRunner)
	if !ok {
		return nil, errors.New(errors.ErrConfig, "Emby provider does not support tasks", "")
	}
	return tr, nil
}

func (c *Client) logFallback(cd card.Card, directErr, finalErr error) {
	if directErr == nil {
		return
	}
	if finalErr == nil && c.proxy != nil {
		c.log.Debug("%s %s: direct failed, served by proxy: %s", cd.CardType, cd.ID, errors.Public(directErr))
		return
	}
	c.log.Debug("%s %s: direct failed: %s", cd.CardType, cd.ID, errors.Public(directErr))
}
