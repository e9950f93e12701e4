// Package monitor implements the terminal dashboard for a NexusNav server.
//
// The dashboard shows every enabled card with its health badge, the last
// probe latency and a latency sparkline. Cards open into windows managed by
// a windows.Controller: provider cards get a live stats panel, SSH cards get
// a relay terminal, everything else opens in the browser.
//
// # Architecture
//
// The package uses the Bubble Tea framework (Model-Update-View):
//
//   - Model: cards, health, latency history, selection and the window panel
//   - Update: keystrokes, tick events, new snapshots, window actions
//   - View: renders the grid, the focused window and the footer
//
// # Key Components
//
//	Model     - The Bubble Tea model containing all dashboard state
//	Collector - Fetches groups, cards and health from the server in parallel
//	History   - Ring buffers of probe latency per card (sparkline graphs)
//
// # Message Flow
//
//  1. tickMsg fires at the configured interval (default 5s)
//  2. collectCmd() asks the Collector for a Snapshot
//  3. snapshotMsg arrives; health samples are pushed into History
//  4. View() re-renders; open windows are read from the controller on
//     every frame so stats polls and SSH output show up without extra
//     messages
//
// # Network Mode
//
// Card URLs arrive resolved for the server's preference. Pressing n cycles
// a local override (auto, lan, wan) that is saved to the prefs store and
// applied before a card is opened.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	Enter       - Open the selected card
//	s           - Open the stats panel of a provider card
//	o           - Open the selected card in the browser
//	i           - Type into the focused SSH window
//	r           - Refresh cards and the focused window
//	Tab         - Focus the next window
//	x           - Close the focused window
//	n           - Cycle network mode
//	j/k, ↑/↓    - Navigate the card grid
//	?           - Toggle help overlay
package monitor
