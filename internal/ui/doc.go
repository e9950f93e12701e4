// Package ui provides terminal output components for the nexusnav CLI.
//
// The package includes spinners, phase displays, tables, sparklines and a
// card picker, styled with Lip Gloss so every command looks the same.
//
// # Components Overview
//
//	Spinner       - Animated status indicator for requests that take a while
//	PhaseDisplay  - Renders `nexusnav serve` startup phases
//	Tables        - Card, group and probe listings
//	Sparkline     - Mini graphs for latency history
//	CardPicker    - Interactive card selection when no id is given
//
// # Color Scheme
//
// Colors use the synthwave palette shared with the monitor dashboard:
//
//	ColorSuccess   (neon green)  - Up, succeeded
//	ColorError     (red-pink)    - Down, failed
//	ColorWarning   (amber)       - Slow, skipped
//	ColorInfo      (cyan)        - Informational messages
//	ColorMuted     (purple-gray) - Secondary text, timing info
//
// Use DisableColors() to switch to monochrome output (for --no-color).
//
// # Spinner Usage
//
//	err := ui.Spin(os.Stderr, "Reloading config", func() error {
//		_, err := c.Reload(ctx, prune, token)
//		return err
//	})
//
// # Phase Display
//
//	pd := ui.NewPhaseDisplay(os.Stderr)
//	err := pd.Step("Opening storage", func() error { ... })
//	err = pd.StepOrSkip("Importing config", func() (string, error) { ... })
//	pd.Divider()
package ui
