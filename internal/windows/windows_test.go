package windows

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/sshrelay"
	"github.com/nexusnav/nexusnav/internal/stats"
)

// scriptedLoader returns results in order, repeating the last one.
type scriptedLoader struct {
	mu       sync.Mutex
	results  []result
	calls    int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

type result struct {
	snap stats.Snapshot
	err  error
}

func (l *scriptedLoader) LoadStats(ctx context.Context, c card.Card) (stats.Snapshot, error) {
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		m := l.maxSeen.Load()
		if n <= m || l.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.calls
	l.calls++
	if i >= len(l.results) {
		i = len(l.results) - 1
	}
	return l.results[i].snap, l.results[i].err
}

func (l *scriptedLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func torrent(active int) *stats.TorrentStats {
	return &stats.TorrentStats{Provider: card.TypeQBittorrent, ActiveCount: active, Source: stats.SourceDirect}
}

var (
	generic = card.Card{ID: "g", Name: "Router", URL: "http://router.lan", OpenMode: card.OpenIframe, CardType: card.TypeGeneric}
	sshCard = card.Card{ID: "s", Name: "NAS", CardType: card.TypeSSH, SSHHost: "nas", SSHUsername: "admin"}
	qbCard  = card.Card{ID: "q", Name: "qB", URL: "http://qb.lan", CardType: card.TypeQBittorrent}
	up      = probe.Health{Status: probe.StatusUp}
	down    = probe.Health{Status: probe.StatusDown}
)

func TestOpen_AssignsIncreasingZIndex(t *testing.T) {
	c := New()
	a1, err := c.Open(generic, up)
	require.NoError(t, err)
	assert.Equal(t, ActionOpened, a1.Type)

	_, err = c.Open(sshCard, up)
	require.NoError(t, err)

	ws := c.Windows()
	require.Len(t, ws, 2)
	assert.Equal(t, BaseZIndex+1, ws[0].ZIndex)
	assert.Equal(t, BaseZIndex+2, ws[1].ZIndex)
	assert.Equal(t, KindIframe, ws[0].Kind)
	assert.Equal(t, "http://router.lan", ws[0].URL)
	assert.Equal(t, KindSSH, ws[1].Kind)
}

func TestOpen_SameCardTwiceFocusesExistingWindow(t *testing.T) {
	loader := &scriptedLoader{results: []result{{snap: torrent(1)}}}
	for _, cd := range []card.Card{generic, sshCard, qbCard} {
		t.Run(string(cd.CardType), func(t *testing.T) {
			c := New(WithStats(loader))
			defer c.Shutdown()

			first, err := c.Open(cd, up)
			require.NoError(t, err)
			other := card.Card{ID: "other", Name: "Other", URL: "http://other", CardType: card.TypeGeneric}
			_, err = c.Open(other, up)
			require.NoError(t, err)

			second, err := c.Open(cd, up)
			require.NoError(t, err)
			assert.Equal(t, ActionFocused, second.Type)
			assert.Equal(t, first.WindowID, second.WindowID)

			ws := c.Windows()
			require.Len(t, ws, 2)
			top := ws[len(ws)-1]
			assert.Equal(t, cd.ID, top.CardID)
			for _, w := range ws[:len(ws)-1] {
				assert.Greater(t, top.ZIndex, w.ZIndex)
			}
		})
	}
}

func TestOpen_NewTabRouting(t *testing.T) {
	c := New()

	newtab := generic
	newtab.OpenMode = card.OpenNewTab
	a, err := c.Open(newtab, up)
	require.NoError(t, err)
	assert.Equal(t, Action{Type: ActionNewTab, URL: "http://router.lan"}, a)

	auto := generic
	auto.OpenMode = card.OpenAuto
	a, err = c.Open(auto, down)
	require.NoError(t, err)
	assert.Equal(t, ActionNewTab, a.Type)
	assert.Empty(t, c.Windows())

	a, err = c.Open(auto, probe.Health{Status: probe.StatusUnknown})
	require.NoError(t, err)
	assert.Equal(t, ActionOpened, a.Type)
	assert.Len(t, c.Windows(), 1)

	// SSH cards never route to a tab.
	s := sshCard
	s.OpenMode = card.OpenAuto
	a, err = c.Open(s, down)
	require.NoError(t, err)
	assert.Equal(t, ActionOpened, a.Type)
}

func TestOpen_NewTabWithoutURL(t *testing.T) {
	c := New()
	cd := generic
	cd.URL = ""
	cd.OpenMode = card.OpenNewTab
	_, err := c.Open(cd, up)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestOpen_StatsWithoutLoader(t *testing.T) {
	_, err := New().Open(qbCard, up)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFocusAndFocusNext(t *testing.T) {
	c := New()
	a, _ := c.Open(generic, up)
	b, _ := c.Open(sshCard, up)

	require.NoError(t, c.Focus(a.WindowID))
	top, ok := c.Top()
	require.True(t, ok)
	assert.Equal(t, a.WindowID, top.ID)

	w, ok := c.FocusNext()
	require.True(t, ok)
	assert.Equal(t, b.WindowID, w.ID)
	top, _ = c.Top()
	assert.Equal(t, b.WindowID, top.ID)

	assert.True(t, errors.IsCode(c.Focus("missing"), errors.ErrNotFound))
}

func TestCloseStopsSession(t *testing.T) {
	var sessions []*sshrelay.Session
	c := New(WithSessions(func(cd card.Card) *sshrelay.Session {
		s := sshrelay.New("http://127.0.0.1:1", cd)
		sessions = append(sessions, s)
		return s
	}))

	a, err := c.Open(sshCard, up)
	require.NoError(t, err)
	w, ok := c.Get(sshCard.ID)
	require.True(t, ok)
	require.NotNil(t, w.Session)
	require.Len(t, sessions, 1)

	require.NoError(t, c.Close(a.WindowID))
	_, ok = c.Get(sshCard.ID)
	assert.False(t, ok)
	assert.Equal(t, sshrelay.StateIdle, sessions[0].State())
	assert.True(t, errors.IsCode(c.Close(a.WindowID), errors.ErrNotFound))

	// Reopening creates a fresh window and session.
	b, err := c.Open(sshCard, up)
	require.NoError(t, err)
	assert.Equal(t, ActionOpened, b.Type)
	assert.Len(t, sessions, 2)
}

func TestStatsWindowKeepsSnapshotOnError(t *testing.T) {
	loader := &scriptedLoader{results: []result{
		{snap: torrent(3)},
		{err: errors.New(errors.ErrProvider, "qBittorrent authentication failed", "")},
		{snap: torrent(5)},
	}}
	c := New(WithStats(loader), WithPollInterval(time.Hour))
	defer c.Shutdown()

	a, err := c.Open(qbCard, up)
	require.NoError(t, err)
	polled := func(n int) func() bool {
		return func() bool {
			w, _ := c.Get(qbCard.ID)
			return w.Polls == n
		}
	}

	require.Eventually(t, polled(1), 2*time.Second, 2*time.Millisecond)
	w, _ := c.Get(qbCard.ID)
	assert.Empty(t, w.Err)
	assert.Equal(t, 3, w.Stats.(*stats.TorrentStats).ActiveCount)

	require.NoError(t, c.Refresh(a.WindowID))
	require.Eventually(t, polled(2), 2*time.Second, 2*time.Millisecond)
	w, _ = c.Get(qbCard.ID)
	assert.Equal(t, "qBittorrent authentication failed", w.Err)
	assert.Equal(t, 3, w.Stats.(*stats.TorrentStats).ActiveCount, "previous snapshot is kept")

	require.NoError(t, c.Refresh(a.WindowID))
	require.Eventually(t, polled(3), 2*time.Second, 2*time.Millisecond)
	w, _ = c.Get(qbCard.ID)
	assert.Empty(t, w.Err)
	assert.Equal(t, 5, w.Stats.(*stats.TorrentStats).ActiveCount)
	assert.False(t, w.Loading)
	assert.False(t, w.Refreshing)
}

func TestStatsWindowPollsOnInterval(t *testing.T) {
	loader := &scriptedLoader{results: []result{{snap: torrent(1)}}}
	c := New(WithStats(loader), WithPollInterval(10*time.Millisecond))
	defer c.Shutdown()

	_, err := c.Open(qbCard, up)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return loader.Calls() >= 3 }, 2*time.Second, 2*time.Millisecond)
}

func TestStatsWindowFirstFetchIsImmediate(t *testing.T) {
	loader := &scriptedLoader{results: []result{{snap: torrent(1)}}}
	c := New(WithStats(loader), WithPollInterval(time.Hour))
	defer c.Shutdown()

	_, err := c.Open(qbCard, up)
	require.NoError(t, err)
	w, _ := c.Get(qbCard.ID)
	assert.True(t, w.Loading || w.Polls == 1)

	require.Eventually(t, func() bool { return loader.Calls() == 1 }, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool {
		w, _ := c.Get(qbCard.ID)
		return !w.Loading && w.Stats != nil
	}, time.Second, 2*time.Millisecond)
}

func TestStatsWindowOneRequestInFlight(t *testing.T) {
	loader := &scriptedLoader{results: []result{{snap: torrent(1)}}, delay: 30 * time.Millisecond}
	c := New(WithStats(loader), WithPollInterval(time.Millisecond))
	defer c.Shutdown()

	a, err := c.Open(qbCard, up)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Refresh(a.WindowID))
	}
	require.Eventually(t, func() bool { return loader.Calls() >= 3 }, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, int32(1), loader.maxSeen.Load())
}

func TestRefreshTriggersFetch(t *testing.T) {
	loader := &scriptedLoader{results: []result{{snap: torrent(1)}}}
	c := New(WithStats(loader), WithPollInterval(time.Hour))
	defer c.Shutdown()

	a, err := c.Open(qbCard, up)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return loader.Calls() == 1 }, time.Second, 2*time.Millisecond)

	require.NoError(t, c.Refresh(a.WindowID))
	require.Eventually(t, func() bool { return loader.Calls() == 2 }, time.Second, 2*time.Millisecond)
	assert.True(t, errors.IsCode(c.Refresh("missing"), errors.ErrNotFound))
}

func TestCloseCancelsPolling(t *testing.T) {
	loader := &scriptedLoader{results: []result{{snap: torrent(1)}}, delay: time.Hour}
	c := New(WithStats(loader))

	a, err := c.Open(qbCard, up)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return loader.inFlight.Load() == 1 }, time.Second, 2*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = c.Close(a.WindowID)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the in-flight request")
	}
	assert.Zero(t, loader.inFlight.Load())
	assert.Empty(t, c.Windows())
}

func TestShutdownRefusesNewWindows(t *testing.T) {
	var changes atomic.Int32
	c := New(WithOnChange(func() { changes.Add(1) }))
	_, err := c.Open(generic, up)
	require.NoError(t, err)

	c.Shutdown()
	assert.Empty(t, c.Windows())
	_, err = c.Open(generic, up)
	assert.Error(t, err)
	assert.GreaterOrEqual(t, changes.Load(), int32(2))
}

func TestWindowIDs(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	c := New(WithClock(func() time.Time { return at }))
	a, err := c.Open(generic, up)
	require.NoError(t, err)
	assert.Equal(t, "window-g-1700000000000", a.WindowID)
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, KindEmby, KindFor(card.TypeEmby))
	assert.Equal(t, KindTransmission, KindFor(card.TypeTransmission))
	assert.Equal(t, KindIframe, KindFor(card.TypeGeneric))
	assert.True(t, KindQBittorrent.IsStats())
	assert.False(t, KindSSH.IsStats())
}
