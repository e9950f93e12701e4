package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters representing 8 vertical levels (lowest to highest).
const sparklineBlocks = "▁▂▃▄▅▆▇█"

// sparklineBlockRunes provides indexed access to block characters.
var sparklineBlockRunes = []rune(sparklineBlocks)

// Thresholds picks the sparkline color from the last value.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// PercentThresholds suit 0-100 metrics.
var PercentThresholds = Thresholds{Warning: 60, Critical: 80}

// LatencyThresholds suit probe latency in milliseconds.
var LatencyThresholds = Thresholds{Warning: 300, Critical: 1000}

// Color returns success, warning or error for v.
func (t Thresholds) Color(v float64) lipgloss.Color {
	switch {
	case v >= t.Critical:
		return ColorError
	case v >= t.Warning:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// RenderSparkline creates a sparkline visualization from a slice of float64 values.
// The width parameter determines how many of the most recent data points to display.
// Values are mapped to 8 vertical levels based on the min/max range, and the
// whole line is colored by the last (current) value.
func RenderSparkline(data []float64, width int, th Thresholds) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}

	// Use only the most recent 'width' data points
	if len(data) > width {
		data = data[len(data)-width:]
	}

	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	var sb strings.Builder
	sb.Grow(len(data) * 4)

	numLevels := len(sparklineBlockRunes)
	valueRange := maxVal - minVal

	for _, v := range data {
		var level int
		if valueRange == 0 {
			// All values are the same, use middle level
			level = numLevels / 2
		} else {
			level = int((v - minVal) / valueRange * float64(numLevels-1))
			if level < 0 {
				level = 0
			} else if level >= numLevels {
				level = numLevels - 1
			}
		}
		sb.WriteRune(sparklineBlockRunes[level])
	}

	style := lipgloss.NewStyle().Foreground(th.Color(data[len(data)-1]))
	return style.Render(sb.String())
}
