// Package probe implements card reachability checks.
//
// The Engine keeps one Health per card id and applies an anti-flap rule:
//
//   - a successful probe sets the card up immediately and clears its failure streak
//   - a failed probe increments the streak; the card only turns down once the
//     streak reaches DownThreshold, otherwise it keeps its previous status
//   - cards that are disabled, have health checks off, or lack an http(s) URL
//     are always unknown with a zero streak
//
// A probe succeeds when any HTTP response comes back within the timeout. The
// status code is deliberately not inspected, so a 500 still counts as up.
//
// Runner drives the engine on a fixed ticker for clients; Scheduler does the
// same on a cron schedule inside the server.
package probe
