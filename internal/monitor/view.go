package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nexusnav/nexusnav/internal/errors"
)

// Layout defaults used before the first WindowSizeMsg.
const (
	defaultCardWidth   = 38
	defaultPanelWidth  = 80
	defaultPanelHeight = 10
	minCardWidth       = 24
)

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	// Render header
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n\n")

	panel := m.renderWindowPanel()

	// Render cards, leaving room for the window panel
	b.WriteString(m.renderCardGrid(m.gridRows(lipgloss.Height(panel))))

	if panel != "" {
		b.WriteString("\n")
		b.WriteString(panel)
	}

	// Render footer
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the dashboard header with summary stats.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("nexusnav")

	parts := []string{}
	if m.server != "" {
		parts = append(parts, m.server)
	}
	parts = append(parts,
		fmt.Sprintf("%d cards", len(m.cards)),
		fmt.Sprintf("%d online", m.OnlineCount()),
		"network "+string(m.mode),
	)
	if m.loaded {
		parts = append(parts, "last update "+formatAge(m.SecondsSinceUpdate()))
	}

	stats := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(" | " + strings.Join(parts, " | "))

	return HeaderStyle.Render(title + stats)
}

// renderStatusLine shows the flash message, or the last collection error.
func (m Model) renderStatusLine() string {
	switch {
	case m.flash != "" && m.flashErr:
		return ErrorStyle.Render(m.flash)
	case m.flash != "":
		return FlashStyle.Render(m.flash)
	case m.lastErr != nil:
		return ErrorStyle.Render(errors.Public(m.lastErr))
	}
	return ""
}

// renderCardGrid renders the visible rows of the card grid, scrolled so the
// selection stays on screen.
func (m Model) renderCardGrid(maxRows int) string {
	if len(m.cards) == 0 {
		switch {
		case !m.loaded && m.lastErr == nil:
			return LabelStyle.Render("Loading cards...")
		case !m.loaded:
			return ErrorStyle.Render("Cannot load cards")
		}
		return LabelStyle.Render("No cards configured")
	}

	cols := m.columns()
	cardWidth := m.cardWidth()

	rows := (len(m.cards) + cols - 1) / cols
	first := 0
	if maxRows > 0 && rows > maxRows {
		selRow := m.selected / cols
		if selRow >= maxRows {
			first = selRow - maxRows + 1
		}
	} else {
		maxRows = rows
	}

	var rendered []string
	start := first * cols
	end := (first + maxRows) * cols
	if end > len(m.cards) {
		end = len(m.cards)
	}
	for i := start; i < end; i++ {
		rendered = append(rendered, m.renderCard(m.cards[i], cardWidth, i == m.selected))
	}

	grid := m.layoutCards(rendered, cols)
	if first > 0 || first+maxRows < rows {
		grid += "\n" + MutedStyle.Render(fmt.Sprintf("rows %d-%d of %d", first+1, first+maxRows, rows))
	}
	return grid
}

// gridRows is how many card rows fit above a panel of the given height.
// Zero means no limit.
func (m Model) gridRows(panelHeight int) int {
	if m.height == 0 {
		return 0
	}
	// header, status line, blank line, footer and the scroll hint
	avail := m.height - 5 - panelHeight
	rows := avail / cardHeight
	if rows < 1 {
		rows = 1
	}
	return rows
}

// columns is the number of cards per grid row.
func (m Model) columns() int {
	switch {
	case m.width >= BreakpointStandard:
		return 3
	case m.width >= BreakpointCompact:
		return 2
	default:
		return 1
	}
}

// cardWidth determines the card width for the current terminal width.
func (m Model) cardWidth() int {
	if m.width == 0 {
		return defaultCardWidth
	}
	// border and right margin
	w := m.width/m.columns() - 3
	if w < minCardWidth {
		w = minCardWidth
	}
	return w
}

// layoutCards arranges cards in rows.
func (m Model) layoutCards(cards []string, cols int) string {
	if len(cards) == 0 {
		return ""
	}

	var rows []string
	for i := 0; i < len(cards); i += cols {
		end := i + cols
		if end > len(cards) {
			end = len(cards)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// panelWidth is the outer width of the window panel.
func (m Model) panelWidth() int {
	if m.width == 0 {
		return defaultPanelWidth
	}
	return m.width
}

// panelHeight is the number of output lines an SSH window shows.
func (m Model) panelHeight() int {
	if m.height == 0 {
		return defaultPanelHeight
	}
	h := m.height/2 - 6
	if h < 4 {
		h = 4
	}
	return h
}

// renderFooter renders the keyboard help footer.
func (m Model) renderFooter() string {
	var hints []string
	if m.inputActive {
		hints = []string{"enter submit", "esc leave input", "ctrl+c quit"}
	} else {
		hints = []string{
			"q quit",
			"enter open",
			"s stats",
			"o browser",
			"n network",
		}
		if len(m.windows.Windows()) > 0 {
			hints = append(hints, "tab window", "x close")
		}
		hints = append(hints, "? help")
	}

	return FooterStyle.Render(strings.Join(hints, " | "))
}

// formatAge renders a duration in seconds as "just now" or "12s ago".
func formatAge(seconds int) string {
	switch {
	case seconds <= 0:
		return "just now"
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	}
	return fmt.Sprintf("%dh ago", seconds/3600)
}

// FormatRate formats a bytes-per-second rate as a human-readable string.
func FormatRate(bytesPerSecond float64) string {
	if bytesPerSecond < 1024 {
		return fmt.Sprintf("%.0f B/s", bytesPerSecond)
	} else if bytesPerSecond < 1024*1024 {
		return fmt.Sprintf("%.1f KB/s", bytesPerSecond/1024)
	} else if bytesPerSecond < 1024*1024*1024 {
		return fmt.Sprintf("%.1f MB/s", bytesPerSecond/(1024*1024))
	}
	return fmt.Sprintf("%.1f GB/s", bytesPerSecond/(1024*1024*1024))
}
