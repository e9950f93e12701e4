package monitor

import (
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/prefs"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/sshrelay"
	"github.com/nexusnav/nexusnav/internal/windows"
)

func TestNewModel(t *testing.T) {
	collector := NewCollector(testBackend(), time.Second, nil)
	store := prefs.NewMemory(prefs.Prefs{NetworkMode: card.NetworkLAN})

	m := NewModel(Options{Collector: collector, Prefs: store, Interval: 3 * time.Second})

	assert.Equal(t, collector, m.collector)
	assert.Equal(t, 3*time.Second, m.interval)
	assert.Equal(t, card.NetworkLAN, m.mode)
	assert.NotNil(t, m.windows)
	assert.NotNil(t, m.openURL)
	assert.NotNil(t, m.readFile)
	assert.NotNil(t, m.history)
	assert.False(t, m.loaded)
}

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel(Options{Collector: NewCollector(testBackend(), 0, nil)})

	assert.Equal(t, DefaultInterval, m.interval)
	assert.Equal(t, card.NetworkAuto, m.mode)
}

func TestModel_Init(t *testing.T) {
	m, _ := newTestModel(t)
	assert.NotNil(t, m.Init())
}

func TestApplySnapshot(t *testing.T) {
	m, _ := newTestModel(t)

	require.True(t, m.loaded)
	assert.Len(t, m.cards, 4)
	assert.Equal(t, "Operations", m.groups["ops"])
	assert.Equal(t, 1, m.history.Count("grafana"))
	assert.Equal(t, 1, m.OnlineCount())
}

func TestApplySnapshot_KeepsSelectionByID(t *testing.T) {
	m, _ := newTestModel(t)
	m.selected = 2 // emby

	reordered := []card.Card{m.cards[2], m.cards[0], m.cards[1]}
	m.applySnapshot(Snapshot{Cards: reordered, At: time.Now()})

	c, ok := m.current()
	require.True(t, ok)
	assert.Equal(t, "emby", c.ID)
	assert.Equal(t, 0, m.selected)
}

func TestApplySnapshot_SelectionFallsBack(t *testing.T) {
	m, _ := newTestModel(t)
	m.selected = 3 // box

	m.applySnapshot(Snapshot{Cards: m.cards[:2], At: time.Now()})

	assert.Equal(t, 0, m.selected)
	assert.Equal(t, 0, m.history.Count("box"))
}

func TestApplySnapshot_FailedCardsKeepPrevious(t *testing.T) {
	m, _ := newTestModel(t)
	fail := errors.New(errors.ErrTransport, "server unreachable", "")

	m.applySnapshot(Snapshot{Err: fail, At: time.Now()})

	assert.Len(t, m.cards, 4)
	assert.Equal(t, fail, m.lastErr)
}

func TestResolve_NetworkOverride(t *testing.T) {
	m, _ := newTestModel(t)
	emby := m.cards[2]

	m.mode = card.NetworkAuto
	assert.Equal(t, "http://10.0.0.5:8096", m.resolve(emby).URL)

	m.mode = card.NetworkWAN
	assert.Equal(t, "https://emby.example.com", m.resolve(emby).URL)

	m.mode = card.NetworkLAN
	assert.Equal(t, "http://10.0.0.5:8096", m.resolve(emby).URL)
}

func TestCycleNetworkMode_Persists(t *testing.T) {
	m, _ := newTestModel(t)

	m.cycleNetworkMode()
	assert.Equal(t, card.NetworkLAN, m.mode)
	assert.Equal(t, "Network mode: lan", m.flash)

	p, err := m.prefs.Get()
	require.NoError(t, err)
	assert.Equal(t, card.NetworkLAN, p.NetworkMode)

	m.cycleNetworkMode()
	m.cycleNetworkMode()
	assert.Equal(t, card.NetworkAuto, m.mode)
}

func TestOpenSelected_Iframe(t *testing.T) {
	m, _ := newTestModel(t)
	m.selected = 0

	cmd := m.openSelected(false)
	assert.Nil(t, cmd)
	assert.Equal(t, "Opened Grafana", m.flash)

	win, ok := m.windows.Top()
	require.True(t, ok)
	assert.Equal(t, "grafana", win.CardID)
	assert.Equal(t, windows.KindIframe, win.Kind)

	m.openSelected(false)
	assert.Equal(t, "Focused Grafana", m.flash)
	assert.Len(t, m.windows.Windows(), 1)
}

func TestOpenSelected_NewTab(t *testing.T) {
	m, opened := newTestModel(t)
	m.selected = 1

	cmd := m.openSelected(false)
	require.NotNil(t, cmd)
	assert.Empty(t, m.windows.Windows())

	msg := cmd()
	bm, ok := msg.(browserMsg)
	require.True(t, ok)
	assert.NoError(t, bm.err)
	assert.Equal(t, []string{"https://docs.example.com"}, *opened)

	updated, _ := m.Update(msg)
	assert.Equal(t, "Opened https://docs.example.com", updated.(Model).flash)
}

func TestOpenSelected_StatsOnlyRejectsPlainCards(t *testing.T) {
	m, _ := newTestModel(t)
	m.selected = 0

	assert.Nil(t, m.openSelected(true))
	assert.True(t, m.flashErr)
	assert.Contains(t, m.flash, "no stats panel")
	assert.Empty(t, m.windows.Windows())
}

func TestOpenSelected_StatsWithoutLoader(t *testing.T) {
	m, _ := newTestModel(t)
	m.selected = 2

	m.openSelected(true)
	assert.True(t, m.flashErr)
	assert.Empty(t, m.windows.Windows())
}

func TestBrowseSelected(t *testing.T) {
	m, opened := newTestModel(t)
	m.selected = 2
	m.mode = card.NetworkWAN

	cmd := m.browseSelected()
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"https://emby.example.com"}, *opened)

	m.selected = 3
	assert.Nil(t, m.browseSelected())
	assert.Contains(t, m.flash, "no web address")
}

func TestBrowserError(t *testing.T) {
	m, _ := newTestModel(t)

	updated, _ := m.Update(browserMsg{url: "http://x", err: assert.AnError})
	got := updated.(Model)
	assert.True(t, got.flashErr)
	assert.Contains(t, got.flash, "Cannot open browser")
}

func TestCloseTop(t *testing.T) {
	m, _ := newTestModel(t)
	m.selected = 0
	m.openSelected(false)

	m.closeTop()
	assert.Empty(t, m.windows.Windows())
	assert.Equal(t, "Closed Grafana", m.flash)

	// nothing open is a no-op
	m.flash = ""
	m.closeTop()
	assert.Empty(t, m.flash)
}

func newSSHModel(t *testing.T) Model {
	t.Helper()
	m, _ := newTestModel(t)
	m.windows = windows.New(windows.WithSessions(func(c card.Card) *sshrelay.Session {
		return sshrelay.New("http://nav.lan:3000", c)
	}))
	t.Cleanup(m.windows.Shutdown)
	m.selected = 3
	return m
}

func TestOpenSelected_SSHAsksForPassword(t *testing.T) {
	m := newSSHModel(t)

	m.openSelected(false)

	assert.True(t, m.inputActive)
	assert.Equal(t, inputPassword, m.inputMode)
	assert.Equal(t, textinput.EchoPassword, m.input.EchoMode)
}

func TestFocusInput_KeyPathForKeyCards(t *testing.T) {
	m := newSSHModel(t)
	m.cards[3].SSHAuthMode = card.AuthPrivateKey

	m.openSelected(false)

	assert.True(t, m.inputActive)
	assert.Equal(t, inputKeyPath, m.inputMode)
	assert.Equal(t, textinput.EchoNormal, m.input.EchoMode)
}

func TestFocusInput_NeedsSSHWindow(t *testing.T) {
	m, _ := newTestModel(t)

	m.focusInput()
	assert.False(t, m.inputActive)
	assert.True(t, m.flashErr)
}

func TestSubmitInput_StartsConnect(t *testing.T) {
	m := newSSHModel(t)
	m.openSelected(false)
	m.input.SetValue("hunter2")

	cmd := m.submitInput()

	assert.NotNil(t, cmd)
	assert.False(t, m.inputActive)
	assert.Equal(t, "Connecting to Box", m.flash)
}

func TestConnectCmd_MissingKeyFile(t *testing.T) {
	m := newSSHModel(t)
	m.readFile = func(string) ([]byte, error) { return nil, assert.AnError }
	m.openSelected(false)
	win, ok := m.windows.Top()
	require.True(t, ok)

	msg := m.connectCmd(win, "~/.ssh/missing", inputKeyPath)()

	cm, ok := msg.(connectMsg)
	require.True(t, ok)
	assert.True(t, errors.IsCode(cm.err, errors.ErrConfig))

	updated, _ := m.Update(cm)
	assert.True(t, updated.(Model).flashErr)
}

func TestUpdate_WindowSize(t *testing.T) {
	m, _ := newTestModel(t)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	got := updated.(Model)

	assert.Equal(t, 100, got.width)
	assert.Equal(t, 30, got.height)
	assert.Equal(t, 92, got.input.Width)
}

func TestUpdate_SpinnerTick(t *testing.T) {
	m, _ := newTestModel(t)

	updated, cmd := m.Update(spinnerTickMsg(time.Now()))
	assert.Equal(t, 1, updated.(Model).spinnerFrame)
	assert.NotNil(t, cmd)
}

func TestUpdate_Snapshot(t *testing.T) {
	m := NewModel(Options{Collector: NewCollector(testBackend(), time.Second, nil)})

	updated, _ := m.Update(snapshotMsg(Snapshot{
		Cards:  testCards(),
		Health: map[string]probe.Health{"grafana": up("grafana", 5, 12)},
		At:     time.Now(),
	}))
	got := updated.(Model)

	assert.True(t, got.loaded)
	assert.Equal(t, 1, got.OnlineCount())
}

func TestSecondsSinceUpdate(t *testing.T) {
	m := NewModel(Options{Collector: NewCollector(testBackend(), time.Second, nil)})
	assert.Equal(t, 0, m.SecondsSinceUpdate())

	m.lastUpdate = time.Now().Add(-10 * time.Second)
	assert.InDelta(t, 10, m.SecondsSinceUpdate(), 1)
}
