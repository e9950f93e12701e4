package ui

// Unicode symbols for status indicators - cyber glyphs.
const (
	SymbolSuccess  = "◉" // Operation succeeded
	SymbolFail     = "✕" // Operation failed
	SymbolPending  = "◇" // Not started yet
	SymbolProgress = "◆" // In progress
	SymbolComplete = "●" // Done (alternative to success)
	SymbolSkipped  = "⊖" // Skipped
	SymbolWarning  = "⚠" // Needs attention
)

