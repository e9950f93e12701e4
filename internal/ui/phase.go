package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 64

// PhaseDisplay renders startup phases (open storage, import config,
// listen) to an output writer.
type PhaseDisplay struct {
	w   io.Writer
	now func() time.Time
}

// NewPhaseDisplay creates a new phase display writing to w.
func NewPhaseDisplay(w io.Writer) *PhaseDisplay {
	return &PhaseDisplay{w: w, now: time.Now}
}

// Step renders name in progress, runs fn and renders the outcome.
func (pd *PhaseDisplay) Step(name string, fn func() error) error {
	return pd.StepOrSkip(name, func() (string, error) { return "", fn() })
}

// StepOrSkip is Step for phases that may have nothing to do. A non-empty
// reason from fn renders the phase as skipped.
func (pd *PhaseDisplay) StepOrSkip(name string, fn func() (string, error)) error {
	start := pd.now()
	pd.RenderProgress(name)
	reason, err := fn()
	switch {
	case err != nil:
		pd.RenderFailed(name, pd.now().Sub(start), err)
		return err
	case reason != "":
		pd.RenderSkipped(name, reason)
	default:
		pd.RenderSuccess(name, pd.now().Sub(start))
	}
	return nil
}

// RenderProgress renders a phase in progress.
// Shows: ◆ Opening storage...
func (pd *PhaseDisplay) RenderProgress(name string) {
	style := lipgloss.NewStyle().Foreground(ColorSecondary)
	fmt.Fprintf(pd.w, "\r%s %s...", style.Render(SymbolProgress), name)
}

// RenderSuccess renders a completed phase.
// Shows: ● Opened storage 0.3s
func (pd *PhaseDisplay) RenderSuccess(name string, duration time.Duration) {
	pd.clearLine()

	symbolStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	timingStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	fmt.Fprintf(pd.w, "%s %s %s\n",
		symbolStyle.Render(SymbolComplete),
		name,
		timingStyle.Render(formatDuration(duration)),
	)
}

// RenderFailed renders a failed phase with the error below it.
// Shows: ✕ Opening storage 2.3s
func (pd *PhaseDisplay) RenderFailed(name string, duration time.Duration, err error) {
	pd.clearLine()

	symbolStyle := lipgloss.NewStyle().Foreground(ColorError)
	timingStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	fmt.Fprintf(pd.w, "%s %s %s\n",
		symbolStyle.Render(SymbolFail),
		name,
		timingStyle.Render(formatDuration(duration)),
	)
	if err != nil {
		fmt.Fprintf(pd.w, "  %s\n", timingStyle.Render(firstLine(err.Error())))
	}
}

// RenderSkipped renders a skipped phase.
// Shows: ⊖ Importing nav file (hash unchanged)
func (pd *PhaseDisplay) RenderSkipped(name string, reason string) {
	pd.clearLine()

	symbolStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	reasonStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	if reason != "" {
		fmt.Fprintf(pd.w, "%s %s %s\n", symbolStyle.Render(SymbolSkipped), name, reasonStyle.Render("("+reason+")"))
		return
	}
	fmt.Fprintf(pd.w, "%s %s\n", symbolStyle.Render(SymbolSkipped), name)
}

// RenderSubStatus renders an indented detail line.
// Shows:   ◇ listening                                  http://0.0.0.0:8080
func (pd *PhaseDisplay) RenderSubStatus(symbol string, name string, status string) {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	fmt.Fprintf(pd.w, "  %s %s %s\n",
		style.Render(symbol),
		name,
		style.Render(status),
	)
}

// Divider renders a horizontal line between the phases and the log output.
func (pd *PhaseDisplay) Divider() {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	fmt.Fprintf(pd.w, "\n%s\n\n", style.Render(strings.Repeat("━", DividerWidth)))
}

// clearLine clears the current line (for overwriting progress output).
func (pd *PhaseDisplay) clearLine() {
	fmt.Fprint(pd.w, "\r"+strings.Repeat(" ", 80)+"\r")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
