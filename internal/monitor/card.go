package monitor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/ui"
)

// Card layout constants
const (
	cardContentLines = 4
	// Rendered card height: content, two border lines and the bottom margin.
	cardHeight = cardContentLines + 3
)

// renderCard renders one card of the grid.
//
//	╭──────────────────────────────────╮
//	│ ◉ Emby                      emby │
//	│ media · 10.0.0.5:8096            │
//	│ 42ms  uptime 100%                │
//	│ ▂▃▂▁▂▅▂▂▃                        │
//	╰──────────────────────────────────╯
func (m Model) renderCard(c card.Card, width int, selected bool) string {
	inner := width - 2 // padding
	h := m.healthOf(c.ID)

	frame := m.spinnerFrame
	glyph, glyphStyle := HealthBadge(h.Status, frame)

	// Line 1: badge, name and type tag
	tag := MutedStyle.Render(string(c.CardType))
	nameWidth := inner - 2 - lipgloss.Width(tag) - 1
	name := CardNameStyle.Render(truncate(c.Name, nameWidth))
	gap := inner - 2 - lipgloss.Width(name) - lipgloss.Width(tag)
	if gap < 1 {
		gap = 1
	}
	line1 := glyphStyle.Render(glyph) + " " + name + strings.Repeat(" ", gap) + tag

	// Line 2: group and address
	var where []string
	if g := m.groups[c.GroupID]; g != "" {
		where = append(where, g)
	} else if c.GroupID != "" {
		where = append(where, c.GroupID)
	}
	if addr := displayAddress(m.resolve(c)); addr != "" {
		where = append(where, addr)
	}
	line2 := LabelStyle.Render(truncate(strings.Join(where, " · "), inner))

	// Line 3: latency and uptime, or why it is down
	line3 := m.renderCardStatus(c, h, inner)

	// Line 4: latency sparkline
	line4 := ui.RenderSparkline(m.history.Latency(c.ID, inner), inner,
		ui.Thresholds{Warning: WarningLatencyMs, Critical: CriticalLatencyMs})
	if line4 == "" {
		line4 = MutedStyle.Render(noHistoryText(c))
	}

	content := strings.Join([]string{line1, line2, line3, line4}, "\n")

	style := CardStyle
	if selected {
		style = CardSelectedStyle
	}
	return style.Width(width).Render(content)
}

// renderCardStatus renders the third card line.
func (m Model) renderCardStatus(c card.Card, h probe.Health, width int) string {
	if !c.IsProbeTarget() {
		return MutedStyle.Render("health check off")
	}

	switch h.Status {
	case probe.StatusDown:
		msg := h.Message
		if msg == "" {
			msg = "down"
		}
		return ErrorStyle.Render(truncate(msg, width))
	case probe.StatusUp:
		latency := lipgloss.NewStyle().Foreground(LatencyColor(h.LatencyMs)).Render(formatLatency(h.LatencyMs))
		if up, n := m.history.Uptime(c.ID); n > 0 {
			return latency + LabelStyle.Render(fmt.Sprintf("  uptime %.0f%%", up*100))
		}
		return latency
	default:
		return StatusUnknownStyle.Render("waiting for probe")
	}
}

func noHistoryText(c card.Card) string {
	if c.CardType.IsStats() {
		return "s for stats"
	}
	if c.CardType == card.TypeSSH {
		return "enter for terminal"
	}
	return ""
}

// displayAddress is the host part of the card URL, or user@host for SSH.
func displayAddress(c card.Card) string {
	if c.CardType == card.TypeSSH && c.SSHHost != "" {
		addr := c.SSHHost
		if c.SSHUsername != "" {
			addr = c.SSHUsername + "@" + addr
		}
		if p := c.Port(); p != 22 {
			addr = fmt.Sprintf("%s:%d", addr, p)
		}
		return addr
	}
	if u, err := url.Parse(c.URL); err == nil && u.Host != "" {
		return u.Host
	}
	return c.URL
}

// truncate shortens s to max display cells, ending in "…".
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= max {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > max {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// formatLatency renders milliseconds as "42ms" or "1.2s".
func formatLatency(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
