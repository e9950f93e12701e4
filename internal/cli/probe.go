package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/client"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/ui"
	"github.com/nexusnav/nexusnav/internal/util"
)

// probeResult is one row of `nexusnav probe --json`.
type probeResult struct {
	probe.Health
	Name string `json:"name"`
	URL  string `json:"url"`
}

// probeCommand probes the enabled cards once from this machine, or shows
// the server's latest results when fromServer is set.
func probeCommand(ctx context.Context, w io.Writer, r *remote, timeout time.Duration, fromServer bool) error {
	enabled := true
	cards, err := r.client.Cards(ctx, client.CardQuery{Enabled: &enabled})
	if err != nil {
		return err
	}

	var results []probe.Health
	if fromServer {
		report, err := r.client.Health(ctx)
		if err != nil {
			return err
		}
		results = report.Cards
	} else {
		// A single failure is enough in a one-shot run.
		engine := r.probeEngine(timeout, 1)
		run := func() error {
			results = engine.ProbeCards(ctx, cards)
			return nil
		}
		if !machineMode && ui.IsTerminal(os.Stderr) {
			_ = ui.Spin(os.Stderr, "Probing "+util.Count(len(cards), "card", "cards"), run)
		} else {
			_ = run()
		}
	}

	rows := probeRows(cards, results)
	if machineMode {
		return WriteJSONSuccess(w, rows)
	}
	fmt.Fprintln(w, renderProbeRows(rows))
	return nil
}

// probeWatch probes from this machine every interval until ctx is done,
// printing each round. The card list is fetched again every round.
func probeWatch(ctx context.Context, w io.Writer, r *remote, timeout, interval time.Duration) error {
	enabled := true
	var cards []card.Card
	runner := &probe.Runner{
		Engine:   r.probeEngine(timeout, r.cfg.Probe.Threshold),
		Interval: interval,
		Source: func(ctx context.Context) ([]card.Card, error) {
			list, err := r.client.Cards(ctx, client.CardQuery{Enabled: &enabled})
			if err != nil {
				return nil, err
			}
			cards = list
			return list, nil
		},
		OnRound: func(results []probe.Health) {
			rows := probeRows(cards, results)
			if machineMode {
				_ = WriteJSONSuccess(w, rows)
				return
			}
			fmt.Fprintf(w, "%s\n%s\n\n", ui.MutedStyle().Render(time.Now().Format("15:04:05")), renderProbeRows(rows))
		},
	}

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (r *remote) probeEngine(timeout time.Duration, threshold int) *probe.Engine {
	if timeout <= 0 {
		timeout = r.cfg.Probe.Timeout
	}
	return probe.NewEngine(probe.NewHTTPProber(timeout),
		probe.WithThreshold(threshold),
		probe.WithLogger(logger.With(r.log, "probe")),
	)
}

func renderProbeRows(rows []probeResult) string {
	table := make([]ui.HealthRow, 0, len(rows))
	for _, row := range rows {
		detail := formatMs(row.LatencyMs)
		switch row.Status {
		case probe.StatusDown:
			detail = row.Message
		case probe.StatusUnknown:
			detail = "-"
		}
		table = append(table, ui.HealthRow{
			Status:  string(row.Status),
			Card:    row.Name,
			URL:     row.URL,
			Latency: detail,
		})
	}
	return ui.RenderHealthTable(table)
}

// probeRows joins results to cards in display order, keeping only cards
// with health checks on.
func probeRows(cards []card.Card, results []probe.Health) []probeResult {
	byID := make(map[string]probe.Health, len(results))
	for _, h := range results {
		byID[h.CardID] = h
	}

	rows := make([]probeResult, 0, len(cards))
	for _, c := range cards {
		if !c.IsProbeTarget() {
			continue
		}
		h, ok := byID[c.ID]
		if !ok {
			h = probe.Health{CardID: c.ID, Status: probe.StatusUnknown}
		}
		rows = append(rows, probeResult{Health: h, Name: c.Name, URL: c.URL})
	}
	return rows
}

func formatMs(ms int64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dms", ms)
}
