package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexusnav/nexusnav/internal/errors"
)

// Command-specific flags
var (
	monitorIntervalFlag string
	probeServerFlag     bool
	probeTimeoutFlag    string
	probeWatchFlag      string
	statsTasksFlag      bool
	statsRunTaskFlag    string
	sshKeyFlag          string
	openNetworkFlag     string
	openPrintFlag       bool
	cardsGroupFlag      string
	cardsQueryFlag      string
	cardsAllFlag        bool
	exportOutputFlag    string
	reloadPruneFlag     bool
)

// serveCmd runs the API server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the NexusNav server",
	Long: `Open the database, import the nav and system files, start the health
prober and serve the REST API and SSH relay.

The nav file is the source of truth at startup: rows missing from it are
pruned unless nav.prune_on_start is false.

Examples:
  nexusnav serve
  nexusnav serve --config /etc/nexusnav/config.yaml
  NEXUSNAV_SERVER_ADDR=:9090 nexusnav serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serveCommand(cmd.Context(), cmd.OutOrStdout(), cfg)
	},
}

// monitorCmd starts the TUI dashboard
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Card dashboard with live health, stats and SSH",
	Long: `Show every enabled card in a grid with its reachability, latency history
and network address. Provider cards open a live stats panel; SSH cards open
a terminal through the server's relay.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  r           Force refresh
  n           Cycle network mode (auto/lan/wan)
  arrows/hjkl Move selection
  Enter       Open the selected card
  s           Stats panel for provider cards
  o           Open the selected card in a browser
  i           Type into the focused SSH window
  Tab         Cycle windows
  x           Close the focused window
  ?           Show help

Examples:
  nexusnav monitor
  nexusnav monitor --server http://nas.lan:8080
  nexusnav monitor --interval 10s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, err := ParseInterval(monitorIntervalFlag)
		if err != nil {
			return err
		}
		r, err := connect()
		if err != nil {
			return err
		}
		return monitorCommand(r, interval)
	},
}

// probeCmd checks every card once
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check which cards are reachable",
	Long: `Probe every enabled card with health checks on from this machine and
print a table. With --from-server the server's latest results are shown
instead. --watch keeps probing on an interval until interrupted; cards only
turn down after probe.threshold failures in a row, as on the server.

Examples:
  nexusnav probe
  nexusnav probe --timeout 2s
  nexusnav probe --watch 30s
  nexusnav probe --from-server --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, err := ParseTimeout(probeTimeoutFlag)
		if err != nil {
			return err
		}
		watch, err := ParseInterval(probeWatchFlag)
		if err != nil {
			return err
		}
		r, err := connect()
		if err != nil {
			return err
		}
		if watch > 0 {
			if probeServerFlag {
				return errors.New(errors.ErrValidation,
					"--watch probes from this machine",
					"Drop --from-server, or use `nexusnav monitor` to follow the server.")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return probeWatch(ctx, cmd.OutOrStdout(), r, timeout, watch)
		}
		return probeCommand(cmd.Context(), cmd.OutOrStdout(), r, timeout, probeServerFlag)
	},
}

// statsCmd loads provider stats for one card
var statsCmd = &cobra.Command{
	Use:   "stats [card]",
	Short: "Show live stats for an Emby, qBittorrent or Transmission card",
	Long: `Load stats straight from the provider, falling back to the server when the
provider cannot be reached from here. Without a card, pick one from a list.

Examples:
  nexusnav stats emby
  nexusnav stats qbittorrent --json
  nexusnav stats emby --tasks
  nexusnav stats emby --run-task 6330ee8fb4a957f33981f89aa78b030f`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		ref, err := r.cardRef(cmd.Context(), args, "Stats for which card?", isStatsCard)
		if err != nil {
			return err
		}
		return statsCommand(cmd.Context(), cmd.OutOrStdout(), r, ref, statsTasksFlag, statsRunTaskFlag)
	},
}

// sshCmd opens an interactive shell through the relay
var sshCmd = &cobra.Command{
	Use:   "ssh [card]",
	Short: "Open a terminal on an SSH card through the server",
	Long: `Connect to an SSH card through the server's relay and attach this terminal.
Password cards prompt for the password; private key cards read --key.
Without a card, pick one from a list. Press Ctrl+] to detach.

Examples:
  nexusnav ssh homeserver
  nexusnav ssh nas --key ~/.ssh/id_ed25519`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		ref, err := r.cardRef(cmd.Context(), args, "Connect to which card?", isSSHCard)
		if err != nil {
			return err
		}
		return sshCommand(cmd.Context(), r, ref, sshKeyFlag)
	},
}

// openCmd opens a card in the browser
var openCmd = &cobra.Command{
	Use:   "open [card]",
	Short: "Open a card in the browser",
	Long: `Open the card's address for the current network in the default browser.
Without a card, pick one from a list.

Examples:
  nexusnav open grafana
  nexusnav open grafana --network wan
  nexusnav open grafana --print`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		ref, err := r.cardRef(cmd.Context(), args, "Open which card?", hasWebAddress)
		if err != nil {
			return err
		}
		return openCommand(cmd.Context(), cmd.OutOrStdout(), r, ref, openNetworkFlag, openPrintFlag, nil)
	},
}

// loginCmd opens an admin session
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the server",
	Long: `Log in with the admin password and save the session for later commands.
The password is read from NEXUSNAV_ADMIN_PASSWORD or prompted for.

Examples:
  nexusnav login
  nexusnav login --server http://nas.lan:8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		return loginCommand(cmd.Context(), cmd.OutOrStdout(), r)
	},
}

// logoutCmd ends the admin session
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		return logoutCommand(cmd.Context(), cmd.OutOrStdout(), r)
	},
}

// networkCmd shows or sets the saved network mode
var networkCmd = &cobra.Command{
	Use:   "network [auto|lan|wan]",
	Short: "Show or set the network mode used to pick card addresses",
	Long: `auto lets the server decide from your address. lan and wan force the
card's LAN or WAN address in the dashboard and in "nexusnav open".

Examples:
  nexusnav network
  nexusnav network wan`,
	ValidArgs: []string{"auto", "lan", "wan"},
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPrefs()
		if err != nil {
			return err
		}
		mode := ""
		if len(args) == 1 {
			mode = args[0]
		}
		return networkCommand(cmd.OutOrStdout(), store, mode)
	},
}

// cardsCmd groups the card commands
var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Inspect cards",
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cards",
	Long: `List cards in display order with addresses resolved for your network.

Examples:
  nexusnav cards list
  nexusnav cards list --group media
  nexusnav cards list --query plex --all`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		return cardsListCommand(cmd.Context(), cmd.OutOrStdout(), r, cardsGroupFlag, cardsQueryFlag, cardsAllFlag)
	},
}

// groupsCmd groups the group commands
var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Inspect groups",
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		return groupsListCommand(cmd.Context(), cmd.OutOrStdout(), r)
	},
}

// importCmd replaces the server's groups and cards with a nav file
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all groups and cards with a nav file",
	Long: `Upload a nav file (yaml or json) and replace every group and card on the
server. Needs the admin password.

Examples:
  nexusnav import nav.yaml
  NEXUSNAV_ADMIN_PASSWORD=secret nexusnav import backup.json --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		return importCommand(cmd.Context(), cmd.OutOrStdout(), r, args[0])
	},
}

// exportCmd downloads the nav document
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print or save the nav document",
	Long: `Export every group and card as a nav file. The format follows the output
file's extension; stdout gets yaml.

Examples:
  nexusnav export
  nexusnav export --output nav-backup.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		return exportCommand(cmd.Context(), cmd.OutOrStdout(), r, exportOutputFlag)
	},
}

// reloadCmd re-imports the server's config files
var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-read the nav and system files on the server",
	Long: `Ask the server to import its nav and system files again. Unchanged files
are skipped. Needs the admin password.

Examples:
  nexusnav reload
  nexusnav reload --prune`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connect()
		if err != nil {
			return err
		}
		return reloadCommand(cmd.Context(), cmd.OutOrStdout(), r, reloadPruneFlag)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for nexusnav.

Examples:
  # Bash
  nexusnav completion bash > /etc/bash_completion.d/nexusnav

  # Zsh
  nexusnav completion zsh > "${fpath[1]}/_nexusnav"

  # Fish
  nexusnav completion fish > ~/.config/fish/completions/nexusnav.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrValidation,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// monitor command flags
	monitorCmd.Flags().StringVar(&monitorIntervalFlag, "interval", "5s", "refresh interval (e.g., 5s, 1m)")

	// probe command flags
	probeCmd.Flags().BoolVar(&probeServerFlag, "from-server", false, "show the server's latest results instead of probing")
	probeCmd.Flags().StringVar(&probeTimeoutFlag, "timeout", "", "per-card probe timeout (e.g., 2s)")
	probeCmd.Flags().StringVar(&probeWatchFlag, "watch", "", "probe again on this interval until interrupted (e.g., 30s)")

	// stats command flags
	statsCmd.Flags().BoolVar(&statsTasksFlag, "tasks", false, "list Emby scheduled tasks")
	statsCmd.Flags().StringVar(&statsRunTaskFlag, "run-task", "", "trigger an Emby scheduled task by id")

	// ssh command flags
	sshCmd.Flags().StringVar(&sshKeyFlag, "key", "", "private key file for private key cards")

	// open command flags
	openCmd.Flags().StringVar(&openNetworkFlag, "network", "", "address to open: auto, lan or wan")
	openCmd.Flags().BoolVar(&openPrintFlag, "print", false, "print the address instead of opening it")

	// cards list flags
	cardsListCmd.Flags().StringVar(&cardsGroupFlag, "group", "", "only cards in this group")
	cardsListCmd.Flags().StringVar(&cardsQueryFlag, "query", "", "filter by name, description or url")
	cardsListCmd.Flags().BoolVar(&cardsAllFlag, "all", false, "include disabled cards")

	// export flags
	exportCmd.Flags().StringVarP(&exportOutputFlag, "output", "o", "", "write to a file instead of stdout")

	// reload flags
	reloadCmd.Flags().BoolVar(&reloadPruneFlag, "prune", false, "delete rows missing from the nav file")

	cardsCmd.AddCommand(cardsListCmd)
	groupsCmd.AddCommand(groupsListCmd)

	// Register all commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(sshCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(completionCmd)
}
