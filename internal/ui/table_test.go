package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/table"
	"github.com/stretchr/testify/assert"
)

func TestNewTableStylesHeader(t *testing.T) {
	columns := []TableColumn{
		{Title: "Name", Width: 20},
		{Title: "Status", Width: 10},
	}
	rows := []table.Row{
		{"grafana", "up"},
		{"router", "down"},
	}

	tbl := newTable(columns, rows)

	// Table should be created without panicking
	view := tbl.View()
	assert.NotEmpty(t, view)
	assert.Contains(t, view, "Name")
	assert.Contains(t, view, "Status")
	assert.Contains(t, view, "grafana")
	assert.Contains(t, view, "router")
}

func TestNewTableEmptyRowsKeepsHeader(t *testing.T) {
	columns := []TableColumn{
		{Title: "Name", Width: 20},
	}
	rows := []table.Row{}

	tbl := newTable(columns, rows)
	view := tbl.View()

	assert.NotEmpty(t, view)
	assert.Contains(t, view, "Name")
}

func TestRenderSimpleTable(t *testing.T) {
	columns := []TableColumn{
		{Title: "Card", Width: 15},
		{Title: "Type", Width: 12},
	}
	rows := [][]string{
		{"emby", "emby"},
		{"router", "generic"},
	}

	output := RenderSimpleTable(columns, rows)

	assert.Contains(t, output, "Card")
	assert.Contains(t, output, "Type")
	assert.Contains(t, output, "emby")
	assert.Contains(t, output, "router")
	assert.Contains(t, output, "generic")
}

func TestRenderSimpleTable_EmptyRows(t *testing.T) {
	columns := []TableColumn{
		{Title: "Name", Width: 20},
	}
	rows := [][]string{}

	output := RenderSimpleTable(columns, rows)
	assert.Empty(t, output)
}

func TestRenderHealthTable(t *testing.T) {
	rows := []HealthRow{
		{Status: "up", Card: "Emby", URL: "http://10.0.0.5:8096", Latency: "42ms"},
		{Status: "down", Card: "Router", URL: "http://192.168.1.1", Latency: "timeout"},
		{Status: "unknown", Card: "NAS", URL: "http://nas.lan", Latency: "-"},
	}

	output := RenderHealthTable(rows)

	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "LATENCY")
	assert.Contains(t, output, SymbolSuccess)
	assert.Contains(t, output, SymbolFail)
	assert.Contains(t, output, SymbolPending)
	assert.Contains(t, output, "Emby")
	assert.Contains(t, output, "42ms")
	assert.Contains(t, output, "timeout")
	assert.Len(t, strings.Split(strings.TrimRight(output, "\n"), "\n"), 5, "header, border and three rows")
}

func TestRenderHealthTable_EmptyRows(t *testing.T) {
	assert.Equal(t, "No cards are probed", RenderHealthTable(nil))
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "shorter than width",
			input:    "foo",
			width:    5,
			expected: "foo  ",
		},
		{
			name:     "equal to width",
			input:    "foobar",
			width:    6,
			expected: "foobar",
		},
		{
			name:     "longer than width",
			input:    "foobar",
			width:    3,
			expected: "foobar",
		},
		{
			name:     "empty string",
			input:    "",
			width:    3,
			expected: "   ",
		},
		{
			name:     "zero width",
			input:    "foo",
			width:    0,
			expected: "foo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := padRight(tt.input, tt.width)
			assert.Equal(t, tt.expected, result)
		})
	}
}
