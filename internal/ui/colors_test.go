package ui

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestPrintWarning(t *testing.T) {
	DisableColors()
	var buf bytes.Buffer
	PrintWarning(&buf, "Router has no wanUrl, opening http://192.168.1.1")

	assert.Equal(t, SymbolWarning+" Router has no wanUrl, opening http://192.168.1.1\n", buf.String())
}

func TestStylesKeepText(t *testing.T) {
	styles := map[string]lipgloss.Style{
		"success": SuccessStyle(),
		"error":   ErrorStyle(),
		"warning": WarningStyle(),
		"info":    InfoStyle(),
		"muted":   MutedStyle(),
	}

	for name, style := range styles {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, style.Render("grafana"), "grafana")
		})
	}
}

func TestDisableColors(t *testing.T) {
	DisableColors()

	assert.Equal(t, "up", SuccessStyle().Render("up"))
	assert.Equal(t, "down", ErrorStyle().Render("down"))
}

func TestSpinnerGradient(t *testing.T) {
	assert.Equal(t, []lipgloss.Color{ColorNeonPink, ColorNeonPurple, ColorNeonCyan, ColorNeonGreen}, GradientColors)
}

