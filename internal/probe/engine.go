package probe

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/logger"
)

// DownThreshold is the number of consecutive failures before a card is reported down.
const DownThreshold = 2

// Status is the coarse health of a card.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

// Health is the per-card probe result exposed to readers.
type Health struct {
	CardID    string `json:"cardId"`
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
	CheckedAt int64  `json:"checkedAt,omitempty"`
	Message   string `json:"message,omitempty"`
}

type entry struct {
	health Health
	streak int
}

// Observer is notified after every classified probe. Used for metrics.
type Observer interface {
	Observed(cardID string, h Health, streak int, latency time.Duration)
}

// Engine classifies probe outcomes per card with a failure-streak hysteresis:
// a success flips to up at once, failures only flip to down after
// DownThreshold consecutive misses.
type Engine struct {
	prober    Prober
	threshold int
	log       logger.Logger
	observer  Observer
	now       func() time.Time

	batchMu sync.Mutex // serializes ProbeCards runs

	mu     sync.RWMutex
	states map[string]entry
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold overrides DownThreshold. Values below 1 are ignored.
func WithThreshold(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.threshold = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver registers an observer called for every probed card.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine around prober.
func NewEngine(prober Prober, opts ...Option) *Engine {
	e := &Engine{
		prober:    prober,
		threshold: DownThreshold,
		log:       logger.Noop(),
		now:       time.Now,
		states:    make(map[string]entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type outcome struct {
	card    card.Card
	latency time.Duration
	err     error
}

// ProbeCards probes every valid target concurrently and folds the results
// into the state map. Cards that are not valid targets are reset to unknown
// with a zero streak. The state afterwards holds exactly the given cards.
// Calls are serialized so streak counters never see interleaved batches.
func (e *Engine) ProbeCards(ctx context.Context, cards []card.Card) []Health {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()

	e.mu.RLock()
	next := make(map[string]entry, len(cards))
	var targets []card.Card
	for _, c := range cards {
		if c.IsProbeTarget() {
			prev, ok := e.states[c.ID]
			if !ok {
				prev = entry{health: Health{CardID: c.ID, Status: StatusUnknown}}
			}
			next[c.ID] = prev
			targets = append(targets, c)
			continue
		}
		next[c.ID] = entry{health: Health{CardID: c.ID, Status: StatusUnknown}}
	}
	e.mu.RUnlock()

	outcomes := make([]outcome, len(targets))
	var wg sync.WaitGroup
	for i, c := range targets {
		wg.Add(1)
		go func(i int, c card.Card) {
			defer wg.Done()
			latency, err := e.prober.Probe(ctx, c.URL)
			outcomes[i] = outcome{card: c, latency: latency, err: err}
		}(i, c)
	}
	wg.Wait()

	checkedAt := e.now().UnixMilli()
	for _, o := range outcomes {
		prev := next[o.card.ID]
		cur := classify(prev, o, checkedAt, e.threshold)
		next[o.card.ID] = cur

		if o.err != nil {
			e.log.Debug("probe %s (%s) failed, streak %d: %v", o.card.ID, o.card.URL, cur.streak, o.err)
		}
		if e.observer != nil {
			e.observer.Observed(o.card.ID, cur.health, cur.streak, o.latency)
		}
	}

	e.mu.Lock()
	e.states = next
	e.mu.Unlock()

	return e.Snapshot()
}

// classify applies the hysteresis rule to one outcome.
func classify(prev entry, o outcome, checkedAt int64, threshold int) entry {
	if o.err == nil {
		return entry{
			health: Health{
				CardID:    o.card.ID,
				Status:    StatusUp,
				LatencyMs: o.latency.Milliseconds(),
				CheckedAt: checkedAt,
			},
		}
	}

	streak := prev.streak + 1
	status := prev.health.Status
	if status == "" {
		status = StatusUnknown
	}
	if streak >= threshold {
		status = StatusDown
	}
	return entry{
		health: Health{
			CardID:    o.card.ID,
			Status:    status,
			LatencyMs: o.latency.Milliseconds(),
			CheckedAt: checkedAt,
			Message:   o.err.Error(),
		},
		streak: streak,
	}
}

// Status returns the health for cardID, or unknown when it has never been probed.
func (e *Engine) Status(cardID string) Health {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if st, ok := e.states[cardID]; ok {
		return st.health
	}
	return Health{CardID: cardID, Status: StatusUnknown}
}

// Streak returns the current failure streak for cardID.
func (e *Engine) Streak(cardID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[cardID].streak
}

// Snapshot returns all health entries sorted by card id.
func (e *Engine) Snapshot() []Health {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Health, 0, len(e.states))
	for _, st := range e.states {
		out = append(out, st.health)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out
}

// Reset clears all health state and streaks.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = make(map[string]entry)
}
