package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nexusnav/nexusnav/internal/errors"
)

// CardInfo is what the picker shows for one card.
type CardInfo struct {
	ID    string
	Name  string
	Group string
	Type  string
	URL   string
}

// cardItem implements list.Item for the Bubbles list component.
type cardItem struct {
	card CardInfo
}

func (i cardItem) Title() string {
	return i.card.Name
}

func (i cardItem) Description() string {
	var parts []string
	if i.card.Group != "" {
		parts = append(parts, i.card.Group)
	}
	if i.card.Type != "" {
		parts = append(parts, i.card.Type)
	}
	if i.card.URL != "" {
		parts = append(parts, i.card.URL)
	}
	return strings.Join(parts, " | ")
}

func (i cardItem) FilterValue() string {
	// Search by name, id, group and type
	return strings.Join([]string{i.card.Name, i.card.ID, i.card.Group, i.card.Type}, " ")
}

// CardPickerModel is a Bubble Tea model for selecting a card.
type CardPickerModel struct {
	list     list.Model
	selected *CardInfo
	quitting bool
}

// cardPickerKeyMap defines key bindings for the card picker.
type cardPickerKeyMap struct {
	Enter key.Binding
	Quit  key.Binding
}

var cardPickerKeys = cardPickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "cancel"),
	),
}

// NewCardPickerModel creates a picker titled title.
func NewCardPickerModel(title string, cards []CardInfo) CardPickerModel {
	items := make([]list.Item, len(cards))
	for i, c := range cards {
		items[i] = cardItem{card: c}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorNeonPink).
		BorderForeground(ColorNeonPurple)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorMuted).
		BorderForeground(ColorNeonPurple)

	l := list.New(items, delegate, 80, 15)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorNeonPink).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	return CardPickerModel{list: l}
}

// Init implements tea.Model.
func (m CardPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m CardPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// While filtering, keys belong to the filter input.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, cardPickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(cardItem); ok {
				m.selected = &item.card
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, cardPickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m CardPickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Selected returns the selected card, or nil if cancelled.
func (m CardPickerModel) Selected() *CardInfo {
	return m.selected
}

// PickCard displays an interactive picker and returns the chosen card.
// Returns nil if the user cancels (ESC/q/Ctrl+C).
func PickCard(title string, cards []CardInfo) (*CardInfo, error) {
	return PickCardWithIO(title, cards, os.Stdout, os.Stdin)
}

// PickCardWithIO displays the card picker using custom I/O.
func PickCardWithIO(title string, cards []CardInfo, output io.Writer, input io.Reader) (*CardInfo, error) {
	if len(cards) == 0 {
		return nil, errors.New(errors.ErrNotFound, "No cards to pick from",
			"Add cards to the nav file or check `nexusnav cards list`.")
	}
	if len(cards) == 1 {
		return &cards[0], nil
	}

	p := tea.NewProgram(
		NewCardPickerModel(title, cards),
		tea.WithOutput(output),
		tea.WithInput(input),
	)

	finalModel, err := p.Run()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Card picker failed",
			"Pass the card id as an argument instead.")
	}

	if m, ok := finalModel.(CardPickerModel); ok {
		return m.Selected(), nil
	}
	return nil, nil
}

// IsTerminal returns true if the file descriptor is a terminal.
func IsTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
