package cli

import (
	"context"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/config"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/server"
	"github.com/nexusnav/nexusnav/internal/ui"
)

// serveCommand builds the server phase by phase and serves until SIGINT or
// SIGTERM.
func serveCommand(ctx context.Context, w io.Writer, cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}

	log := logger.NewSlog(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if verbose {
		log = logger.NewSlog(logger.Options{Level: "debug", Format: cfg.Log.Format, Output: os.Stderr, AddSource: true})
	}
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, ln, err := startServer(ctx, w, cfg, log)
	if err != nil {
		return err
	}
	defer srv.Close()
	return srv.Run(ctx, ln)
}

// startServer runs the startup phases, rendering each one unless --json is set.
func startServer(ctx context.Context, w io.Writer, cfg *config.Config, log logger.Logger) (*server.Server, net.Listener, error) {
	out := w
	if machineMode {
		out = io.Discard
	}
	detail := "defaults, no config file"
	if cfg.Path != "" {
		detail = cfg.Path
	}
	ui.PrintHeader(out, ui.HeaderInfo{Version: formatVersion(version), Tagline: "Homelab navigation", Detail: detail})

	pd := ui.NewPhaseDisplay(out)
	srv := server.New(cfg, log)

	if err := pd.Step("Opening storage", func() error { return srv.OpenStorage(ctx) }); err != nil {
		return nil, nil, err
	}

	err := pd.StepOrSkip("Importing config", func() (string, error) {
		res, err := srv.ImportConfig(ctx)
		if err != nil || res.Changed {
			return "", err
		}
		return res.Message, nil
	})
	if err != nil {
		srv.Close()
		return nil, nil, err
	}

	if err := pd.Step("Wiring services", srv.Wire); err != nil {
		srv.Close()
		return nil, nil, err
	}

	var ln net.Listener
	err = pd.Step("Binding "+cfg.Server.Addr, func() error {
		var err error
		ln, err = srv.Listen()
		return err
	})
	if err != nil {
		srv.Close()
		return nil, nil, err
	}

	pd.RenderSubStatus(ui.SymbolPending, "nav file", cfg.Nav.NavPath)
	pd.RenderSubStatus(ui.SymbolPending, "probe schedule", card.FirstNonBlank(cfg.Probe.Schedule, probe.DefaultSchedule))
	pd.RenderSubStatus(ui.SymbolSuccess, "listening", ui.InfoStyle().Render("http://"+ln.Addr().String()))
	pd.Divider()
	return srv, ln, nil
}
