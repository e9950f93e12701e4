package cli

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/monitor"
	"github.com/nexusnav/nexusnav/internal/sshrelay"
	"github.com/nexusnav/nexusnav/internal/stats"
	"github.com/nexusnav/nexusnav/internal/stats/emby"
	"github.com/nexusnav/nexusnav/internal/stats/qbittorrent"
	"github.com/nexusnav/nexusnav/internal/stats/transmission"
	"github.com/nexusnav/nexusnav/internal/windows"
)

// newStatsClient loads stats from the providers directly and falls back to
// the server's proxy endpoints.
func newStatsClient(r *remote) *stats.Client {
	return stats.NewClient([]stats.Provider{
		emby.New(nil),
		qbittorrent.New(nil),
		transmission.New(nil),
	},
		stats.WithProxy(r.client),
		stats.WithTimeout(r.cfg.Stats.Timeout),
		stats.WithLogger(logger.With(r.log, "stats")),
	)
}

// newSessionFactory opens relay sessions that carry the saved login.
func newSessionFactory(r *remote) windows.SessionFactory {
	return func(c card.Card) *sshrelay.Session {
		return sshrelay.New(r.client.Server(), c,
			sshrelay.WithHeader(r.client.SessionHeader()),
			sshrelay.WithBufferSize(r.cfg.SSH.BufferBytes),
			sshrelay.WithLogger(logger.With(r.log, "ssh")),
		)
	}
}

// monitorCommand starts the TUI dashboard.
func monitorCommand(r *remote, interval time.Duration) error {
	log := r.log
	wins := windows.New(
		windows.WithStats(newStatsClient(r)),
		windows.WithSessions(newSessionFactory(r)),
		windows.WithPollInterval(r.cfg.Stats.PollInterval),
		windows.WithLogger(logger.With(log, "windows")),
	)
	defer wins.Shutdown()

	model := monitor.NewModel(monitor.Options{
		Collector: monitor.NewCollector(r.client, r.cfg.Client.Timeout, logger.With(log, "collector")),
		Windows:   wins,
		Prefs:     r.prefs,
		Server:    r.client.Server(),
		Interval:  interval,
		Log:       log,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
