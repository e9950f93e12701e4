package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/sshrelay"
)

// Dashboard color palette - Gen Z Electric Synthwave
const (
	// Background colors (glassmorphism-inspired)
	ColorDarkBg    = lipgloss.Color("#0A0A0F") // Deep void
	ColorSurfaceBg = lipgloss.Color("#12121A") // Dark surface
	ColorBorder    = lipgloss.Color("#2A2A4A") // Glass border (purple tint)

	// Semantic colors - neon style
	ColorHealthy  = lipgloss.Color("#39FF14") // Neon green
	ColorWarning  = lipgloss.Color("#FFAA00") // Electric amber
	ColorCritical = lipgloss.Color("#FF0055") // Hot red-pink

	// Text colors
	ColorTextPrimary   = lipgloss.Color("#FFFFFF") // Pure white
	ColorTextSecondary = lipgloss.Color("#B4B4D0") // Lavender gray
	ColorTextMuted     = lipgloss.Color("#6B6B8D") // Purple-gray

	// Accent colors - neon pink primary, cyan secondary
	ColorAccent    = lipgloss.Color("#FF2E97") // Neon pink
	ColorAccentDim = lipgloss.Color("#BF40FF") // Neon purple

	// Graph colors
	ColorGraph = lipgloss.Color("#00FFFF") // Neon cyan
)

// Latency thresholds in milliseconds.
const (
	WarningLatencyMs  = 300
	CriticalLatencyMs = 1000
)

// Base styles for the dashboard
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1).
			MarginRight(1).
			MarginBottom(1)

	CardSelectedStyle = CardStyle.
				BorderForeground(ColorAccent)

	// Window panel frame; the focused window is always the one shown.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccentDim).
			Padding(0, 1)

	CardNameStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorCritical)

	FlashStyle = lipgloss.NewStyle().
			Foreground(ColorGraph)

	TabStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	TabActiveStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorAccent).
			Bold(true).
			Padding(0, 1)

	StatusUpStyle      = lipgloss.NewStyle().Foreground(ColorHealthy)
	StatusDownStyle    = lipgloss.NewStyle().Foreground(ColorCritical)
	StatusUnknownStyle = lipgloss.NewStyle().Foreground(ColorTextSecondary)
)

// Health badge glyphs
const (
	GlyphUp      = "◉" // Filled target
	GlyphDown    = "◌" // Dashed circle
	GlyphUnknown = "◐" // Half-filled (fallback when not animating)
)

// UnknownSpinnerFrames animate the badge of cards that were never probed.
var UnknownSpinnerFrames = []string{"◐", "◓", "◑", "◒"}

// LoadingSpinnerFrames animate windows that wait on their first stats load.
var LoadingSpinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// HealthBadge returns the glyph and style for a health status. frame drives
// the animation of the unknown state.
func HealthBadge(status probe.Status, frame int) (string, lipgloss.Style) {
	switch status {
	case probe.StatusUp:
		return GlyphUp, StatusUpStyle
	case probe.StatusDown:
		return GlyphDown, StatusDownStyle
	default:
		if frame < 0 {
			return GlyphUnknown, StatusUnknownStyle
		}
		return UnknownSpinnerFrames[frame%len(UnknownSpinnerFrames)], StatusUnknownStyle
	}
}

// SessionStyle colors an SSH session state.
func SessionStyle(st sshrelay.State) lipgloss.Style {
	switch st {
	case sshrelay.StateConnected:
		return StatusUpStyle
	case sshrelay.StateConnecting:
		return lipgloss.NewStyle().Foreground(ColorWarning)
	case sshrelay.StateError:
		return StatusDownStyle
	default:
		return StatusUnknownStyle
	}
}

// LatencyColor returns the color for a latency in milliseconds.
func LatencyColor(ms int64) lipgloss.Color {
	switch {
	case ms >= CriticalLatencyMs:
		return ColorCritical
	case ms >= WarningLatencyMs:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// ShareBar renders part/total as a thin bar. An empty total renders an
// empty bar.
func ShareBar(width, part, total int, color lipgloss.Color) string {
	if width < 1 {
		width = 1
	}
	filled := 0
	if total > 0 && part > 0 {
		filled = part * width / total
		if filled == 0 {
			filled = 1
		}
		if filled > width {
			filled = width
		}
	}
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("━", filled)) +
		MutedStyle.Render(strings.Repeat("─", width-filled))
}
