package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/client"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/probe"
)

// DefaultCollectTimeout bounds one collection round.
const DefaultCollectTimeout = 8 * time.Second

// Collector gathers everything the dashboard shows in one round. Groups,
// cards and health are fetched in parallel.
type Collector struct {
	backend Backend
	timeout time.Duration
	log     logger.Logger
	now     func() time.Time
}

// NewCollector creates a collector. A zero timeout uses DefaultCollectTimeout.
func NewCollector(backend Backend, timeout time.Duration, log logger.Logger) *Collector {
	if timeout <= 0 {
		timeout = DefaultCollectTimeout
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Collector{
		backend: backend,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
}

// Timeout returns the per-round timeout.
func (c *Collector) Timeout() time.Duration {
	return c.timeout
}

// Collect runs one round. It never returns partial cards: when the card
// list fails, Snapshot.Cards is nil and Err is set. Group and health
// failures only set Err.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		wg        sync.WaitGroup
		groups    []card.Group
		cards     []card.Card
		report    client.HealthReport
		groupsErr error
		cardsErr  error
		healthErr error
	)

	enabled := true
	wg.Add(3)
	go func() {
		defer wg.Done()
		groups, groupsErr = c.backend.Groups(ctx)
	}()
	go func() {
		defer wg.Done()
		cards, cardsErr = c.backend.Cards(ctx, client.CardQuery{Enabled: &enabled})
	}()
	go func() {
		defer wg.Done()
		report, healthErr = c.backend.Health(ctx)
	}()
	wg.Wait()

	snap := Snapshot{
		Groups: make(map[string]string, len(groups)),
		Health: make(map[string]probe.Health, len(report.Cards)),
		At:     c.now(),
	}

	if cardsErr != nil {
		c.log.Debug("collect: cards failed: %v", cardsErr)
		snap.Err = cardsErr
		return snap
	}
	snap.Cards = cards

	for _, g := range groups {
		snap.Groups[g.ID] = g.Name
	}
	for _, h := range report.Cards {
		snap.Health[h.CardID] = h
	}
	snap.HealthAt = report.UpdatedAt

	switch {
	case healthErr != nil:
		c.log.Debug("collect: health failed: %v", healthErr)
		snap.Err = healthErr
	case groupsErr != nil:
		c.log.Debug("collect: groups failed: %v", groupsErr)
		snap.Err = groupsErr
	}
	return snap
}
