package monitor

import tea "github.com/charmbracelet/bubbletea"

// Key bindings as constants for consistency.
const (
	KeyQuit         = "q"
	KeyQuitAlt      = "ctrl+c"
	KeyRefresh      = "r"
	KeyOpen         = "enter"
	KeyStats        = "s"
	KeyBrowser      = "o"
	KeyInput        = "i"
	KeyNextWindow   = "tab"
	KeyCloseWindow  = "x"
	KeyNetworkMode  = "n"
	KeySelectPrev   = "up"
	KeySelectPrevK  = "k"
	KeySelectNext   = "down"
	KeySelectNextJ  = "j"
	KeySelectLeft   = "left"
	KeySelectLeftH  = "h"
	KeySelectRight  = "right"
	KeySelectRightL = "l"
	KeySelectFirst  = "home"
	KeySelectLast   = "end"
	KeyEscape       = "esc"
	KeyToggleHelp   = "?"
)

// HandleKeyMsg processes keyboard input and returns updated model state and command.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	// The SSH input line swallows everything but its own controls.
	if m.inputActive {
		return m.handleInputKey(msg)
	}

	// Help toggle takes priority
	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}

	if m.showHelp && key == KeyEscape {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		m.windows.Shutdown()
		return true, tea.Quit

	case KeyRefresh:
		return true, m.refresh()

	case KeyOpen:
		return true, m.openSelected(false)

	case KeyStats:
		return true, m.openSelected(true)

	case KeyBrowser:
		return true, m.browseSelected()

	case KeyInput:
		m.focusInput()
		return true, nil

	case KeyNextWindow:
		if _, ok := m.windows.FocusNext(); ok {
			m.blurInput()
		}
		return true, nil

	case KeyCloseWindow:
		m.closeTop()
		return true, nil

	case KeyNetworkMode:
		m.cycleNetworkMode()
		return true, nil

	case KeySelectLeft, KeySelectLeftH:
		if m.selected > 0 {
			m.selected--
		}
		return true, nil

	case KeySelectRight, KeySelectRightL:
		if m.selected < len(m.cards)-1 {
			m.selected++
		}
		return true, nil

	case KeySelectPrev, KeySelectPrevK:
		if m.selected-m.columns() >= 0 {
			m.selected -= m.columns()
		}
		return true, nil

	case KeySelectNext, KeySelectNextJ:
		if m.selected+m.columns() < len(m.cards) {
			m.selected += m.columns()
		}
		return true, nil

	case KeySelectFirst:
		m.selected = 0
		return true, nil

	case KeySelectLast:
		if len(m.cards) > 0 {
			m.selected = len(m.cards) - 1
		}
		return true, nil

	case KeyEscape:
		m.flash = ""
		return true, nil
	}

	return false, nil
}

// handleInputKey routes keys to the SSH input line.
func (m *Model) handleInputKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch msg.String() {
	case KeyQuitAlt:
		m.quitting = true
		m.windows.Shutdown()
		return true, tea.Quit
	case KeyEscape:
		m.blurInput()
		return true, nil
	case KeyOpen:
		return true, m.submitInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.inputMode == inputCommand {
		if win, ok := m.windows.Top(); ok && win.Session != nil {
			win.Session.SetPending(m.input.Value())
		}
	}
	return true, cmd
}
