package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestLatencyThresholdColors(t *testing.T) {
	tests := []struct {
		name string
		ms   float64
		want lipgloss.Color
	}{
		{"fast card is green", 42, ColorSuccess},
		{"slow card is amber", 300, ColorWarning},
		{"very slow card is red", 1500, ColorError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyThresholds.Color(tt.ms))
		})
	}
}

func TestHealthGlyphs(t *testing.T) {
	// up, down and unknown must stay distinguishable without color
	glyphs := map[string]string{
		"up":      SymbolSuccess,
		"down":    SymbolFail,
		"unknown": SymbolPending,
	}

	seen := make(map[string]string)
	for status, g := range glyphs {
		assert.NotEmpty(t, g)
		if other, ok := seen[g]; ok {
			t.Errorf("%s and %s share glyph %q", status, other, g)
		}
		seen[g] = status
	}
}

func TestHealthTableShowsEveryStatus(t *testing.T) {
	DisableColors()
	out := RenderHealthTable([]HealthRow{
		{Status: "up", Card: "Grafana", URL: "http://grafana.lan:3000", Latency: "18ms"},
		{Status: "down", Card: "NAS", URL: "http://10.0.0.2", Latency: "connection refused"},
		{Status: "unknown", Card: "Wiki", URL: "http://wiki.lan", Latency: "-"},
	})

	assert.Contains(t, out, SymbolSuccess+"        Grafana")
	assert.Contains(t, out, SymbolFail+"        NAS")
	assert.Contains(t, out, SymbolPending+"        Wiki")
	assert.Contains(t, out, "http://grafana.lan:3000")
	assert.Contains(t, out, "connection refused")
}

func TestStatusColorsAreDistinct(t *testing.T) {
	colors := []lipgloss.Color{ColorSuccess, ColorError, ColorWarning, ColorInfo, ColorMuted}

	seen := make(map[lipgloss.Color]bool)
	for _, c := range colors {
		assert.False(t, seen[c], "status color reused: %s", c)
		seen[c] = true
	}
}
