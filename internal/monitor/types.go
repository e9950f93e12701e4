package monitor

import (
	"context"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/client"
	"github.com/nexusnav/nexusnav/internal/probe"
)

// Backend is the part of client.Client the dashboard reads from.
type Backend interface {
	Groups(ctx context.Context) ([]card.Group, error)
	Cards(ctx context.Context, q client.CardQuery) ([]card.Card, error)
	Health(ctx context.Context) (client.HealthReport, error)
}

var _ Backend = (*client.Client)(nil)

// Snapshot is the result of one collection round.
type Snapshot struct {
	Cards  []card.Card
	Groups map[string]string // group id -> name
	Health map[string]probe.Health

	// HealthAt is the server's probe timestamp in unix millis.
	HealthAt int64

	// Err is the first failure of the round. Cards is nil when the card
	// list itself could not be loaded.
	Err error
	At  time.Time
}

// UpCount returns how many cards in the snapshot are up.
func (s Snapshot) UpCount() int {
	n := 0
	for _, c := range s.Cards {
		if s.Health[c.ID].Status == probe.StatusUp {
			n++
		}
	}
	return n
}

// HealthOf returns the health of a card, unknown when the server has none.
func (s Snapshot) HealthOf(cardID string) probe.Health {
	if h, ok := s.Health[cardID]; ok {
		return h
	}
	return probe.Health{CardID: cardID, Status: probe.StatusUnknown}
}
