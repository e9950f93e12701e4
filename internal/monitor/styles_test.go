package monitor

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/sshrelay"
)

func TestHealthBadge(t *testing.T) {
	glyph, _ := HealthBadge(probe.StatusUp, 0)
	assert.Equal(t, GlyphUp, glyph)

	glyph, _ = HealthBadge(probe.StatusDown, 3)
	assert.Equal(t, GlyphDown, glyph)

	glyph, _ = HealthBadge(probe.StatusUnknown, -1)
	assert.Equal(t, GlyphUnknown, glyph)

	// unknown animates through the spinner frames
	for i := range UnknownSpinnerFrames {
		glyph, _ = HealthBadge(probe.StatusUnknown, i+len(UnknownSpinnerFrames))
		assert.Equal(t, UnknownSpinnerFrames[i], glyph)
	}
}

func TestLatencyColor(t *testing.T) {
	tests := []struct {
		ms       int64
		expected lipgloss.Color
	}{
		{0, ColorHealthy},
		{WarningLatencyMs - 1, ColorHealthy},
		{WarningLatencyMs, ColorWarning},
		{CriticalLatencyMs - 1, ColorWarning},
		{CriticalLatencyMs, ColorCritical},
		{5000, ColorCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, LatencyColor(tt.ms), "latency %d", tt.ms)
	}
}

func TestSessionStyle(t *testing.T) {
	assert.Equal(t, StatusUpStyle.GetForeground(), SessionStyle(sshrelay.StateConnected).GetForeground())
	assert.Equal(t, StatusDownStyle.GetForeground(), SessionStyle(sshrelay.StateError).GetForeground())
	assert.Equal(t, lipgloss.Color(ColorWarning), SessionStyle(sshrelay.StateConnecting).GetForeground())
	assert.Equal(t, StatusUnknownStyle.GetForeground(), SessionStyle(sshrelay.StateIdle).GetForeground())
}

func TestShareBar(t *testing.T) {
	tests := []struct {
		name         string
		width        int
		part, total  int
		expectFilled int
	}{
		{"empty total", 10, 0, 0, 0},
		{"half", 10, 5, 10, 5},
		{"full", 10, 10, 10, 10},
		{"tiny share shows one cell", 10, 1, 1000, 1},
		{"over total clamps", 10, 20, 10, 10},
		{"zero width", 0, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := ShareBar(tt.width, tt.part, tt.total, ColorGraph)
			assert.Equal(t, tt.expectFilled, strings.Count(bar, "━"))

			width := tt.width
			if width < 1 {
				width = 1
			}
			assert.Equal(t, width, lipgloss.Width(bar))
		})
	}
}
