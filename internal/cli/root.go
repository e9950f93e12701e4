package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexusnav/nexusnav/internal/config"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/ui"
	"github.com/nexusnav/nexusnav/internal/util"
)

// Global flags
var (
	cfgFile    string
	serverFlag string
	verbose    bool
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "nexusnav",
	Short: "Homelab navigation server and terminal dashboard",
	Long: `NexusNav keeps a list of homelab services as cards, probes them for
reachability, loads live stats from Emby, qBittorrent and Transmission, and
relays SSH sessions to your boxes.

Run "nexusnav serve" on the box that hosts the database, then point the
client commands at it with --server or client.server in the config file.

Examples:
  nexusnav serve
  nexusnav monitor --server http://nas.lan:8080
  nexusnav cards list
  nexusnav ssh homeserver`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || machineMode || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./nexusnav.yaml, then ~/.config/nexusnav/config.yaml)")
	pf.StringVar(&serverFlag, "server", "", "server URL for client commands")
	pf.BoolVar(&machineMode, "json", false, "machine-readable JSON output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command and reports any error on stderr, or as a
// JSON envelope on stdout in --json mode.
func Execute() error {
	err := rootCmd.Execute()
	if err == nil {
		return nil
	}

	if machineMode {
		_ = WriteJSONFromError(os.Stdout, err)
		return err
	}

	fmt.Fprintln(os.Stderr, err)
	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			if s := rootCmd.SuggestionsFor(name); len(s) > 0 {
				fmt.Fprintf(os.Stderr, "\nDid you mean: %s\n", util.JoinOrNone(s))
			}
		}
		fmt.Fprintln(os.Stderr, "Run 'nexusnav --help' for usage.")
	}
	return err
}

// isUnknownCommandError reports whether cobra rejected the command line.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "nexusnav"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

// loadConfig reads --config, the working directory file or the global file,
// falling back to defaults.
func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(cfgFile)
}

// clientLogger is quiet unless --verbose or NEXUSNAV_DEBUG is set.
func clientLogger() logger.Logger {
	if verbose {
		return logger.NewSlog(logger.Options{Level: "debug", Output: os.Stderr})
	}
	return logger.NewEnvLogger("[nexusnav]")
}
