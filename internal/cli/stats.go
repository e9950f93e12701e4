package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/monitor"
	"github.com/nexusnav/nexusnav/internal/stats"
	"github.com/nexusnav/nexusnav/internal/ui"
)

// statsCommand prints a provider snapshot, lists Emby tasks, or triggers one.
func statsCommand(ctx context.Context, w io.Writer, r *remote, ref string, tasks bool, runTask string) error {
	cd, err := r.resolveCard(ctx, ref)
	if err != nil {
		return err
	}
	if !cd.CardType.IsStats() {
		return errors.New(errors.ErrValidation,
			fmt.Sprintf("%s is a %s card", cd.Name, cd.CardType),
			"Stats are available for emby, qbittorrent and transmission cards.")
	}
	if (tasks || runTask != "") && cd.CardType != card.TypeEmby {
		return errors.New(errors.ErrValidation,
			"Scheduled tasks are an Emby feature",
			"Drop --tasks and --run-task for "+string(cd.CardType)+" cards.")
	}

	sc := newStatsClient(r)

	switch {
	case runTask != "":
		res, err := sc.RunEmbyTask(ctx, cd, runTask, "")
		if err != nil {
			return err
		}
		if machineMode {
			return WriteJSONSuccess(w, res)
		}
		name := card.FirstNonBlank(res.TaskName, res.TaskID)
		fmt.Fprintf(w, "%s %s: %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), name,
			card.FirstNonBlank(res.Message, res.Status))
		return nil

	case tasks:
		list, err := sc.EmbyTasks(ctx, cd)
		if err != nil {
			return err
		}
		if machineMode {
			return WriteJSONSuccess(w, list)
		}
		renderEmbyTasks(w, list)
		return nil
	}

	snap, err := sc.LoadStats(ctx, cd)
	if err != nil {
		return err
	}
	if machineMode {
		return WriteJSONSuccess(w, snap)
	}
	renderSnapshot(w, cd, snap)
	return nil
}

func renderSnapshot(w io.Writer, cd card.Card, snap stats.Snapshot) {
	fmt.Fprintf(w, "%s  %s\n\n", cd.Name, ui.MutedStyle().Render(string(cd.CardType)))

	var updated int64
	switch s := snap.(type) {
	case *stats.TorrentStats:
		updated = s.UpdatedAt
		fmt.Fprintf(w, "  ↓ %s   ↑ %s\n", monitor.FormatRate(float64(s.DownloadSpeed)), monitor.FormatRate(float64(s.UploadSpeed)))
		fmt.Fprintf(w, "  %d active / %d total\n\n", s.ActiveCount, s.TotalCount)

		var rows [][]string
		for _, b := range stats.Buckets {
			n := s.StatusBreakdown.Count(b)
			if b == stats.BucketUnknown && n == 0 {
				continue
			}
			rows = append(rows, []string{string(b), strconv.Itoa(n)})
		}
		fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
			{Title: "State", Width: 14},
			{Title: "Torrents", Width: 10},
		}, rows))

	case *stats.EmbyStats:
		updated = s.UpdatedAt
		fmt.Fprintf(w, "  %d items\n", s.MediaTotal)
		fmt.Fprintf(w, "  %d online, %d playing\n\n", s.OnlineSessions, s.PlayingSessions)

		rows := make([][]string, 0, len(s.MediaBreakdown))
		for _, m := range s.MediaBreakdown {
			rows = append(rows, []string{m.Key, strconv.FormatInt(m.Count, 10)})
		}
		if len(rows) > 0 {
			fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
				{Title: "Library", Width: 16},
				{Title: "Items", Width: 10},
			}, rows))
		}
	}

	footer := "via " + string(snap.Origin())
	if updated > 0 {
		footer += " · " + time.UnixMilli(updated).Format("15:04:05")
	}
	fmt.Fprintln(w, ui.MutedStyle().Render(footer))
}

func renderEmbyTasks(w io.Writer, list []stats.EmbyTask) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No scheduled tasks")
		return
	}
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		rows = append(rows, []string{t.ID, t.Name, t.State, card.FirstNonBlank(t.LastResult, "-")})
	}
	fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "ID", Width: 34},
		{Title: "Task", Width: 32},
		{Title: "State", Width: 10},
		{Title: "Last result", Width: 12},
	}, rows))
}
