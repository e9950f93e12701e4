package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nexusnav/nexusnav/internal/sshrelay"
	"github.com/nexusnav/nexusnav/internal/stats"
	"github.com/nexusnav/nexusnav/internal/windows"
)

// Window panel styles
var (
	bucketColors = map[stats.Bucket]lipgloss.Color{
		stats.BucketDownloading: ColorGraph,
		stats.BucketSeeding:     ColorHealthy,
		stats.BucketPaused:      ColorTextSecondary,
		stats.BucketQueued:      ColorAccentDim,
		stats.BucketChecking:    ColorWarning,
		stats.BucketStalled:     ColorWarning,
		stats.BucketError:       ColorCritical,
		stats.BucketUnknown:     ColorTextMuted,
	}

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)
)

// mediaRows caps the Emby library breakdown.
const mediaRows = 6

// renderWindowPanel renders the tab strip and the focused window. It
// returns "" when nothing is open.
func (m Model) renderWindowPanel() string {
	wins := m.windows.Windows()
	if len(wins) == 0 {
		return ""
	}
	top, ok := m.windows.Top()
	if !ok {
		return ""
	}

	inner := m.panelWidth() - 4
	var b strings.Builder

	b.WriteString(m.renderTabs(wins, top.ID, inner))
	b.WriteString("\n")
	b.WriteString(m.renderWindowTitle(top, inner))
	b.WriteString("\n\n")

	switch {
	case top.Kind == windows.KindSSH:
		b.WriteString(m.renderSSHBody(top, inner))
	case top.Kind.IsStats():
		b.WriteString(m.renderStatsBody(top, inner))
	default:
		b.WriteString(m.renderIframeBody(top, inner))
	}

	return PanelStyle.Width(m.panelWidth() - 2).Render(b.String())
}

// renderTabs renders one tab per open window, the focused one highlighted.
func (m Model) renderTabs(wins []windows.Window, topID string, width int) string {
	var tabs []string
	used := 0
	for i, w := range wins {
		label := w.Title
		if w.Icon != "" {
			label = w.Icon + " " + label
		}
		style := TabStyle
		if w.ID == topID {
			style = TabActiveStyle
		}
		tab := style.Render(truncate(label, 24))
		if used+lipgloss.Width(tab) > width {
			tabs = append(tabs, MutedStyle.Render(fmt.Sprintf("+%d", len(wins)-i)))
			break
		}
		used += lipgloss.Width(tab)
		tabs = append(tabs, tab)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderWindowTitle renders the focused window's title and address.
func (m Model) renderWindowTitle(w windows.Window, width int) string {
	title := panelTitleStyle.Render(w.Title)
	kind := MutedStyle.Render(" " + string(w.Kind))
	addr := ""
	if w.URL != "" {
		addr = LabelStyle.Render("  " + truncate(w.URL, width-lipgloss.Width(title)-lipgloss.Width(kind)-2))
	}
	return title + kind + addr
}

func (m Model) renderIframeBody(w windows.Window, width int) string {
	lines := []string{
		ValueStyle.Render(truncate(w.URL, width)),
		MutedStyle.Render("Web pages do not render in a terminal. Press o to open the selected card in a browser."),
	}
	return strings.Join(lines, "\n")
}

// renderStatsBody renders a provider window.
func (m Model) renderStatsBody(w windows.Window, width int) string {
	if w.Loading && w.Stats == nil {
		frame := LoadingSpinnerFrames[m.spinnerFrame%len(LoadingSpinnerFrames)]
		return StatusUnknownStyle.Render(frame + " Loading stats")
	}

	var lines []string
	if w.Err != "" {
		lines = append(lines, ErrorStyle.Render(truncate(w.Err, width)))
	}

	switch s := w.Stats.(type) {
	case *stats.TorrentStats:
		lines = append(lines, renderTorrentStats(s, width)...)
	case *stats.EmbyStats:
		lines = append(lines, renderEmbyStats(s, width)...)
	case nil:
		if w.Err == "" {
			lines = append(lines, MutedStyle.Render("No stats yet"))
		}
	}

	if w.Stats != nil {
		lines = append(lines, "", m.renderStatsFooter(w))
	}
	return strings.Join(lines, "\n")
}

func renderTorrentStats(s *stats.TorrentStats, width int) []string {
	speeds := StatusUpStyle.Render("↓ "+FormatRate(float64(s.DownloadSpeed))) + "  " +
		lipgloss.NewStyle().Foreground(ColorGraph).Render("↑ "+FormatRate(float64(s.UploadSpeed)))
	counts := LabelStyle.Render(fmt.Sprintf("   %d active / %d total", s.ActiveCount, s.TotalCount))
	lines := []string{speeds + counts, ""}

	barWidth := width - 20
	if barWidth < 10 {
		barWidth = 10
	}
	total := s.StatusBreakdown.Total()
	for _, bucket := range stats.Buckets {
		n := s.StatusBreakdown.Count(bucket)
		if n == 0 && bucket == stats.BucketUnknown {
			continue
		}
		label := LabelStyle.Render(fmt.Sprintf("%-12s", bucket))
		count := ValueStyle.Render(fmt.Sprintf("%5d ", n))
		lines = append(lines, label+count+ShareBar(barWidth, n, total, bucketColors[bucket]))
	}
	return lines
}

func renderEmbyStats(s *stats.EmbyStats, width int) []string {
	lines := []string{
		LabelStyle.Render("Library  ") + ValueStyle.Render(fmt.Sprintf("%d items", s.MediaTotal)),
		LabelStyle.Render("Sessions ") + ValueStyle.Render(fmt.Sprintf("%d online, %d playing", s.OnlineSessions, s.PlayingSessions)),
	}
	if len(s.MediaBreakdown) == 0 {
		return lines
	}

	lines = append(lines, "")
	barWidth := width - 28
	if barWidth < 10 {
		barWidth = 10
	}
	for i, mc := range s.MediaBreakdown {
		if i == mediaRows {
			lines = append(lines, MutedStyle.Render(fmt.Sprintf("and %d more", len(s.MediaBreakdown)-mediaRows)))
			break
		}
		label := LabelStyle.Render(fmt.Sprintf("%-16s", truncate(mc.Key, 16)))
		count := ValueStyle.Render(fmt.Sprintf("%8d ", mc.Count))
		lines = append(lines, label+count+ShareBar(barWidth, int(mc.Count), int(s.MediaTotal), ColorGraph))
	}
	return lines
}

// renderStatsFooter shows where the snapshot came from and its age.
func (m Model) renderStatsFooter(w windows.Window) string {
	var updatedAt int64
	switch s := w.Stats.(type) {
	case *stats.TorrentStats:
		updatedAt = s.UpdatedAt
	case *stats.EmbyStats:
		updatedAt = s.UpdatedAt
	}

	parts := []string{"via " + string(w.Stats.Origin())}
	if updatedAt > 0 {
		age := int(time.Since(time.UnixMilli(updatedAt)).Seconds())
		parts = append(parts, "updated "+formatAge(age))
	}
	if w.Refreshing {
		parts = append(parts, "refreshing")
	}
	return MutedStyle.Render(strings.Join(parts, " · "))
}

// renderSSHBody renders the session state, the output tail and the input line.
func (m Model) renderSSHBody(w windows.Window, width int) string {
	if w.Session == nil {
		return ErrorStyle.Render("No session")
	}
	snap := w.Session.Snapshot()

	var lines []string
	lines = append(lines, SessionStyle(snap.State).Render("● "+string(snap.State)))
	lines = append(lines, tailLines(snap.Output, m.panelHeight(), width)...)

	switch {
	case m.inputActive:
		lines = append(lines, m.input.View())
	case snap.State == sshrelay.StateConnected:
		lines = append(lines, MutedStyle.Render("i to type a command"))
	default:
		lines = append(lines, MutedStyle.Render("i to connect"))
	}
	return strings.Join(lines, "\n")
}

// tailLines returns the last n lines of out, each cut to width.
func tailLines(out string, n, width int) []string {
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "")
	out = strings.TrimRight(out, "\n")
	if out == "" || n <= 0 {
		return nil
	}
	lines := strings.Split(out, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, l := range lines {
		lines[i] = truncate(strings.ReplaceAll(l, "\t", "    "), width)
	}
	return lines
}
