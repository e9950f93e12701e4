// Package cli implements the nexusnav command-line interface.
//
// The package is organized around Cobra commands, with each command's RunE
// loading what it needs and delegating to a xxxCommand function that takes
// its dependencies as arguments. Tests call those functions directly.
//
// # Command Structure
//
// The root command is "nexusnav" with one server command and a set of
// client commands that talk to a running server:
//
//	nexusnav serve              - Run the API server, prober and SSH relay
//	nexusnav monitor            - Card dashboard with stats and SSH windows
//	nexusnav probe              - One-shot reachability check
//	nexusnav stats <card>       - Provider stats, Emby tasks
//	nexusnav ssh <card>         - Interactive shell through the relay
//	nexusnav open <card>        - Open a card in the browser
//	nexusnav login / logout     - Admin session
//	nexusnav cards list         - List cards
//	nexusnav groups list        - List groups
//	nexusnav import / export    - Replace or dump the nav document
//	nexusnav reload             - Re-read the server's config files
//
// # Server Selection
//
// Client commands pick the server from --server, then the server saved by
// the last login, then client.server in the config file. The session token
// and the network mode override live in the preferences file under the user
// config directory, never in the config file.
//
// # Flag Handling
//
// Global flags (--config, --server, --json, --verbose, --no-color) are
// defined on the root command. With --json every command writes a single
// JSONEnvelope to stdout, errors included, and never prompts.
package cli
