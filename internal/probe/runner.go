package probe

import (
	"context"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
)

// DefaultInterval is the fixed period between probe rounds.
const DefaultInterval = 30 * time.Second

// CardSource supplies the cards to probe for each round.
type CardSource func(ctx context.Context) ([]card.Card, error)

// Runner drives an Engine on a fixed period. Each round completes before the
// next tick is consumed, so rounds never overlap. Failures of the card source
// skip the round; nothing is retried early.
type Runner struct {
	Engine   *Engine
	Source   CardSource
	Interval time.Duration

	// OnRound, when set, receives the snapshot after every round.
	OnRound func([]Health)
}

// Run probes immediately, then on every tick until ctx is done.
// When it returns the engine has been reset.
func (r *Runner) Run(ctx context.Context) error {
	defer r.Engine.Reset()

	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	r.round(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.round(ctx)
		}
	}
}

func (r *Runner) round(ctx context.Context) {
	cards, err := r.Source(ctx)
	if err != nil {
		r.Engine.log.Warn("probe round skipped: %v", err)
		return
	}
	snap := r.Engine.ProbeCards(ctx, cards)
	if r.OnRound != nil && ctx.Err() == nil {
		r.OnRound(snap)
	}
}
