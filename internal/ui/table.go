package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// newTable creates a Bubbles table with the palette applied.
func newTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	// Apply styling
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	s.Selected = s.Selected.
		Foreground(ColorPrimary).
		Background(ColorMuted).
		Bold(false)

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string.
// This is for CLI output (not TUI), producing a simple formatted table.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	// Create the table
	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := newTable(columns, tableRows)
	return t.View()
}

// HealthRow is one line of the probe table.
type HealthRow struct {
	Status  string // up, down or unknown
	Card    string
	URL     string
	Latency string // latency, or the failure message when down
}

// RenderHealthTable renders probe results with a status glyph per card.
func RenderHealthTable(rows []HealthRow) string {
	if len(rows) == 0 {
		return "No cards are probed"
	}

	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(ColorMuted)

	var b strings.Builder
	b.WriteString(headerStyle.Render("  STATUS   CARD                 URL                                LATENCY"))
	b.WriteString("\n")

	for _, row := range rows {
		var icon, latency string
		switch row.Status {
		case "up":
			icon = SuccessStyle().Render(SymbolSuccess)
			latency = mutedStyle.Render(row.Latency)
		case "down":
			icon = ErrorStyle().Render(SymbolFail)
			latency = ErrorStyle().Render(row.Latency)
		default:
			icon = WarningStyle().Render(SymbolPending)
			latency = mutedStyle.Render(row.Latency)
		}

		b.WriteString("  " + icon + "        " +
			padRight(row.Card, 21) +
			padRight(InfoStyle().Render(row.URL), 35) +
			latency)
		b.WriteString("\n")
	}

	return b.String()
}

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
