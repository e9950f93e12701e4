package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestRenderSparkline_Empty(t *testing.T) {
	assert.Empty(t, RenderSparkline(nil, 10, LatencyThresholds))
	assert.Empty(t, RenderSparkline([]float64{}, 10, LatencyThresholds))
	assert.Empty(t, RenderSparkline([]float64{1, 2}, 0, LatencyThresholds))
	assert.Empty(t, RenderSparkline([]float64{1, 2}, -3, LatencyThresholds))
}

func TestRenderSparkline_OneBlockPerPoint(t *testing.T) {
	result := stripANSI(RenderSparkline([]float64{10, 40, 80, 120, 300}, 10, LatencyThresholds))
	assert.Len(t, []rune(result), 5)
}

func TestRenderSparkline_KeepsMostRecent(t *testing.T) {
	data := []float64{0, 0, 0, 0, 0, 10, 20, 30}
	result := []rune(stripANSI(RenderSparkline(data, 3, LatencyThresholds)))
	assert.Len(t, result, 3)
	assert.Equal(t, '▁', result[0])
	assert.Equal(t, '█', result[2])
}

func TestRenderSparkline_FlatDataUsesMiddleLevel(t *testing.T) {
	result := []rune(stripANSI(RenderSparkline([]float64{42, 42, 42}, 10, PercentThresholds)))
	for _, r := range result {
		assert.Equal(t, sparklineBlockRunes[len(sparklineBlockRunes)/2], r)
	}
}

func TestRenderSparkline_NegativeAndLargeValues(t *testing.T) {
	assert.True(t, containsBlockChar(RenderSparkline([]float64{-10, -5, 0}, 10, PercentThresholds)))
	assert.True(t, containsBlockChar(RenderSparkline([]float64{1e6, 2e6}, 10, LatencyThresholds)))
}

func TestThresholds_Color(t *testing.T) {
	tests := []struct {
		name  string
		th    Thresholds
		value float64
		want  lipgloss.Color
	}{
		{"fast probe", LatencyThresholds, 45, ColorSuccess},
		{"slow probe", LatencyThresholds, 300, ColorWarning},
		{"very slow probe", LatencyThresholds, 2500, ColorError},
		{"low percent", PercentThresholds, 10, ColorSuccess},
		{"high percent", PercentThresholds, 79.9, ColorWarning},
		{"full percent", PercentThresholds, 100, ColorError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.th.Color(tt.value))
		})
	}
}

func containsBlockChar(s string) bool {
	for _, r := range s {
		if strings.ContainsRune(sparklineBlocks, r) {
			return true
		}
	}
	return false
}

func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if r == 'm' {
				inEscape = false
			}
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}
