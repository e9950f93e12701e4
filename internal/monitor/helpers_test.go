package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/client"
	"github.com/nexusnav/nexusnav/internal/prefs"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/windows"
)

// fakeBackend serves canned results and records the last card query.
type fakeBackend struct {
	mu        sync.Mutex
	groups    []card.Group
	cards     []card.Card
	report    client.HealthReport
	groupsErr error
	cardsErr  error
	healthErr error
	lastQuery client.CardQuery
}

func (f *fakeBackend) Groups(ctx context.Context) ([]card.Group, error) {
	return f.groups, f.groupsErr
}

func (f *fakeBackend) Cards(ctx context.Context, q client.CardQuery) ([]card.Card, error) {
	f.mu.Lock()
	f.lastQuery = q
	f.mu.Unlock()
	return f.cards, f.cardsErr
}

func (f *fakeBackend) Health(ctx context.Context) (client.HealthReport, error) {
	return f.report, f.healthErr
}

func testCards() []card.Card {
	return []card.Card{
		{ID: "grafana", GroupID: "ops", Name: "Grafana", URL: "http://grafana.lan:3000", CardType: card.TypeGeneric,
			OpenMode: card.OpenIframe, Enabled: true, HealthCheckEnabled: true},
		{ID: "docs", GroupID: "ops", Name: "Docs", URL: "https://docs.example.com", CardType: card.TypeGeneric,
			OpenMode: card.OpenNewTab, Enabled: true, HealthCheckEnabled: true},
		{ID: "emby", GroupID: "media", Name: "Emby", URL: "http://10.0.0.5:8096", LanURL: "http://10.0.0.5:8096",
			WanURL: "https://emby.example.com", CardType: card.TypeEmby, Enabled: true},
		{ID: "box", GroupID: "ops", Name: "Box", CardType: card.TypeSSH, SSHHost: "10.0.0.2", SSHUsername: "root",
			SSHAuthMode: card.AuthPassword, Enabled: true},
	}
}

func testBackend() *fakeBackend {
	return &fakeBackend{
		groups: []card.Group{{ID: "ops", Name: "Operations"}, {ID: "media", Name: "Media"}},
		cards:  testCards(),
		report: client.HealthReport{
			Cards: []probe.Health{
				{CardID: "grafana", Status: probe.StatusUp, LatencyMs: 42, CheckedAt: 1000},
				{CardID: "docs", Status: probe.StatusDown, Message: "connection refused", CheckedAt: 1000},
			},
			UpdatedAt: 1000,
		},
	}
}

// newTestModel returns a sized model with the test cards loaded.
func newTestModel(t *testing.T) (Model, *[]string) {
	t.Helper()

	var opened []string
	wins := windows.New()
	t.Cleanup(wins.Shutdown)

	m := NewModel(Options{
		Collector: NewCollector(testBackend(), time.Second, nil),
		Windows:   wins,
		Prefs:     prefs.NewMemory(prefs.Prefs{}),
		Server:    "http://nav.lan:3000",
		OpenURL: func(u string) error {
			opened = append(opened, u)
			return nil
		},
	})
	m.width = 120
	m.height = 40
	m.applySnapshot(m.collector.Collect(context.Background()))
	return m, &opened
}
