package monitor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/config"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/prefs"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/sshrelay"
	"github.com/nexusnav/nexusnav/internal/windows"
)

// DefaultInterval is the refresh interval when Options.Interval is zero.
const DefaultInterval = 5 * time.Second

// spinnerInterval is the animation frame rate. Every frame also redraws
// open windows, which is how stats polls and SSH output reach the screen.
const spinnerInterval = 150 * time.Millisecond

// Width breakpoints for the card grid
const (
	BreakpointCompact  = 80
	BreakpointStandard = 120
)

// inputMode says what the SSH input line is collecting.
type inputMode int

const (
	inputNone inputMode = iota
	inputPassword
	inputKeyPath
	inputCommand
)

// Options configures NewModel.
type Options struct {
	Collector *Collector
	Windows   *windows.Controller

	// Prefs persists the network mode override. Optional.
	Prefs prefs.Store

	// Server is shown in the header.
	Server   string
	Interval time.Duration

	// OpenURL defaults to browser.OpenURL.
	OpenURL func(url string) error

	// ReadFile loads private keys; defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)

	Log logger.Logger
}

// Model is the Bubble Tea model for the card dashboard.
type Model struct {
	collector *Collector
	windows   *windows.Controller
	prefs     prefs.Store
	openURL   func(string) error
	readFile  func(string) ([]byte, error)
	log       logger.Logger
	server    string

	cards      []card.Card
	groups     map[string]string
	health     map[string]probe.Health
	history    *History
	mode       card.NetworkMode
	lastUpdate time.Time
	lastErr    error
	loaded     bool

	selected int
	width    int
	height   int
	interval time.Duration
	quitting bool
	showHelp bool

	// One-line status under the header; cleared by the next action.
	flash    string
	flashErr bool

	spinnerFrame int

	input       textinput.Model
	inputMode   inputMode
	inputActive bool
}

// tickMsg signals a periodic refresh.
type tickMsg time.Time

// spinnerTickMsg signals an animation frame.
type spinnerTickMsg time.Time

// snapshotMsg carries a finished collection round.
type snapshotMsg Snapshot

// browserMsg reports a browser launch.
type browserMsg struct {
	url string
	err error
}

// connectMsg reports an SSH connect attempt.
type connectMsg struct {
	cardID string
	state  sshrelay.State
	err    error
}

// sendMsg reports a command sent to an SSH window.
type sendMsg struct {
	err error
}

// NewModel creates the dashboard model.
func NewModel(opts Options) Model {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := opts.Log
	if log == nil {
		log = logger.Noop()
	}
	openURL := opts.OpenURL
	if openURL == nil {
		openURL = browser.OpenURL
	}
	readFile := opts.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	wins := opts.Windows
	if wins == nil {
		wins = windows.New(windows.WithLogger(log))
	}

	mode := card.NetworkAuto
	if opts.Prefs != nil {
		if p, err := opts.Prefs.Get(); err == nil && p.NetworkMode != "" {
			mode = p.NetworkMode
		}
	}

	in := textinput.New()
	in.Prompt = "› "
	in.CharLimit = 4096

	return Model{
		collector: opts.Collector,
		windows:   wins,
		prefs:     opts.Prefs,
		openURL:   openURL,
		readFile:  readFile,
		log:       log,
		server:    opts.Server,
		groups:    make(map[string]string),
		health:    make(map[string]probe.Health),
		history:   NewHistory(DefaultHistorySize),
		mode:      mode,
		interval:  interval,
		input:     in,
	}
}

// Init starts the tick timers and triggers the first collection.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.collectCmd(),
		m.spinnerTickCmd(),
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.panelWidth() - 8
		m.resizeSessions()

	case tickMsg:
		return m, tea.Batch(m.tickCmd(), m.collectCmd())

	case spinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % 10000
		return m, m.spinnerTickCmd()

	case snapshotMsg:
		m.applySnapshot(Snapshot(msg))

	case browserMsg:
		if msg.err != nil {
			m.setFlash("Cannot open browser: "+msg.err.Error(), true)
		} else {
			m.setFlash("Opened "+msg.url, false)
		}

	case connectMsg:
		if msg.err != nil {
			m.setFlash(errors.Public(msg.err), true)
			return m, nil
		}
		if win, ok := m.windows.Top(); ok && win.CardID == msg.cardID && msg.state == sshrelay.StateConnected {
			m.focusInput()
		}

	case sendMsg:
		if msg.err != nil {
			m.setFlash(errors.Public(msg.err), true)
		}
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) spinnerTickCmd() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

// collectCmd runs one collection round in the background.
func (m Model) collectCmd() tea.Cmd {
	c := m.collector
	return func() tea.Msg {
		return snapshotMsg(c.Collect(context.Background()))
	}
}

// applySnapshot merges a collection round. A failed card list keeps the
// previous cards on screen.
func (m *Model) applySnapshot(s Snapshot) {
	m.lastUpdate = s.At
	m.lastErr = s.Err
	if s.Cards == nil {
		return
	}

	selectedID := ""
	if c, ok := m.current(); ok {
		selectedID = c.ID
	}

	m.loaded = true
	m.cards = s.Cards
	m.groups = s.Groups
	m.health = s.Health

	keep := make(map[string]bool, len(s.Cards))
	for _, c := range s.Cards {
		keep[c.ID] = true
		if h, ok := s.Health[c.ID]; ok {
			m.history.Push(h)
		}
	}
	m.history.Retain(keep)

	m.selected = 0
	for i, c := range m.cards {
		if c.ID == selectedID {
			m.selected = i
			break
		}
	}
}

// current returns the selected card.
func (m Model) current() (card.Card, bool) {
	if m.selected < 0 || m.selected >= len(m.cards) {
		return card.Card{}, false
	}
	return m.cards[m.selected], true
}

// healthOf returns the last known health of a card.
func (m Model) healthOf(cardID string) probe.Health {
	if h, ok := m.health[cardID]; ok {
		return h
	}
	return probe.Health{CardID: cardID, Status: probe.StatusUnknown}
}

// resolve applies the local network mode override. Auto keeps the URL the
// server resolved for this client.
func (m Model) resolve(c card.Card) card.Card {
	if m.mode == card.NetworkLAN || m.mode == card.NetworkWAN {
		return c.WithResolvedURL(m.mode)
	}
	return c
}

// openSelected opens the selected card through the window controller.
func (m *Model) openSelected(statsOnly bool) tea.Cmd {
	c, ok := m.current()
	if !ok {
		return nil
	}
	if statsOnly && !c.CardType.IsStats() {
		m.setFlash(fmt.Sprintf("%s has no stats panel", c.Name), true)
		return nil
	}

	action, err := m.windows.Open(m.resolve(c), m.healthOf(c.ID))
	if err != nil {
		m.setFlash(errors.Public(err), true)
		return nil
	}
	switch action.Type {
	case windows.ActionNewTab:
		return m.browserCmd(action.URL)
	case windows.ActionOpened:
		m.setFlash("Opened "+c.Name, false)
		if windows.KindFor(c.CardType) == windows.KindSSH {
			m.focusInput()
		} else {
			m.blurInput()
		}
	case windows.ActionFocused:
		m.setFlash("Focused "+c.Name, false)
		m.blurInput()
	}
	return nil
}

// browseSelected opens the selected card's URL in the browser, skipping
// the window controller.
func (m *Model) browseSelected() tea.Cmd {
	c, ok := m.current()
	if !ok {
		return nil
	}
	u := m.resolve(c).URL
	if !card.IsHTTPURL(u) {
		m.setFlash(fmt.Sprintf("%s has no web address", c.Name), true)
		return nil
	}
	return m.browserCmd(u)
}

func (m Model) browserCmd(url string) tea.Cmd {
	open := m.openURL
	return func() tea.Msg {
		return browserMsg{url: url, err: open(url)}
	}
}

// refresh recollects cards and reloads the focused stats window.
func (m *Model) refresh() tea.Cmd {
	if win, ok := m.windows.Top(); ok && win.Kind.IsStats() {
		if err := m.windows.Refresh(win.ID); err != nil {
			m.log.Debug("refresh %s: %v", win.ID, err)
		}
	}
	m.setFlash("Refreshing", false)
	return m.collectCmd()
}

func (m *Model) closeTop() {
	win, ok := m.windows.Top()
	if !ok {
		return
	}
	m.blurInput()
	if err := m.windows.Close(win.ID); err != nil {
		m.setFlash(errors.Public(err), true)
		return
	}
	m.setFlash("Closed "+win.Title, false)
}

// cycleNetworkMode steps the override and saves it.
func (m *Model) cycleNetworkMode() {
	m.mode = prefs.CycleNetworkMode(m.mode)
	if m.prefs != nil {
		if err := m.prefs.SetNetworkMode(m.mode); err != nil {
			m.setFlash(errors.Public(err), true)
			return
		}
	}
	m.setFlash("Network mode: "+string(m.mode), false)
}

// focusInput activates the input line of the focused SSH window. A
// connected session takes commands, anything else asks for credentials.
func (m *Model) focusInput() {
	win, ok := m.windows.Top()
	if !ok || win.Session == nil {
		m.setFlash("Focus an SSH window first", true)
		return
	}

	m.input.Reset()
	m.input.EchoMode = textinput.EchoNormal
	switch {
	case win.Session.State() == sshrelay.StateConnected:
		m.inputMode = inputCommand
		m.input.Placeholder = "command"
	case win.Card.SSHAuthMode == card.AuthPrivateKey:
		m.inputMode = inputKeyPath
		m.input.Placeholder = "path to private key"
	default:
		m.inputMode = inputPassword
		m.input.Placeholder = "password"
		m.input.EchoMode = textinput.EchoPassword
	}
	m.inputActive = true
	m.input.Focus()
}

func (m *Model) blurInput() {
	m.inputActive = false
	m.inputMode = inputNone
	m.input.Reset()
	m.input.Blur()
}

// submitInput handles enter on the input line.
func (m *Model) submitInput() tea.Cmd {
	win, ok := m.windows.Top()
	if !ok || win.Session == nil {
		m.blurInput()
		return nil
	}

	value := m.input.Value()
	switch m.inputMode {
	case inputCommand:
		win.Session.SetPending(value)
		m.input.Reset()
		return sendCmd(win.Session)
	case inputPassword, inputKeyPath:
		mode := m.inputMode
		m.blurInput()
		m.setFlash("Connecting to "+win.Title, false)
		return m.connectCmd(win, value, mode)
	}
	return nil
}

// connectCmd dials the relay and waits for the session to settle.
func (m Model) connectCmd(win windows.Window, secret string, mode inputMode) tea.Cmd {
	session := win.Session
	readFile := m.readFile
	timeout := m.collector.Timeout()
	return func() tea.Msg {
		var creds sshrelay.Credentials
		if mode == inputKeyPath {
			path := config.ExpandTilde(strings.TrimSpace(secret))
			data, err := readFile(path)
			if err != nil {
				return connectMsg{cardID: win.CardID, err: errors.WrapWithCode(err, errors.ErrConfig,
					"Cannot read private key "+path, "")}
			}
			creds.PrivateKey = string(data)
		} else {
			creds.Password = secret
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := session.Connect(ctx, creds); err != nil {
			return connectMsg{cardID: win.CardID, err: err}
		}
		st, err := session.Wait(ctx)
		return connectMsg{cardID: win.CardID, state: st, err: err}
	}
}

func sendCmd(s *sshrelay.Session) tea.Cmd {
	return func() tea.Msg {
		return sendMsg{err: s.Submit()}
	}
}

// resizeSessions tells connected SSH windows about the panel size.
func (m Model) resizeSessions() {
	cols, rows := m.panelWidth()-4, m.panelHeight()
	if cols < 20 || rows < 4 {
		return
	}
	for _, w := range m.windows.Windows() {
		if w.Session != nil && w.Session.State() == sshrelay.StateConnected {
			_ = w.Session.Resize(cols, rows)
		}
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
}

// OnlineCount returns the number of cards currently up.
func (m Model) OnlineCount() int {
	n := 0
	for _, c := range m.cards {
		if m.health[c.ID].Status == probe.StatusUp {
			n++
		}
	}
	return n
}

// SecondsSinceUpdate returns the seconds since the last collection round.
func (m Model) SecondsSinceUpdate() int {
	if m.lastUpdate.IsZero() {
		return 0
	}
	return int(time.Since(m.lastUpdate).Seconds())
}
