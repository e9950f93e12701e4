package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/client"
	"github.com/nexusnav/nexusnav/internal/ui"
)

// cardsListCommand prints cards in display order.
func cardsListCommand(ctx context.Context, w io.Writer, r *remote, group, query string, all bool) error {
	q := client.CardQuery{GroupID: group, Query: query}
	if !all {
		enabled := true
		q.Enabled = &enabled
	}
	cards, err := r.client.Cards(ctx, q)
	if err != nil {
		return err
	}
	if machineMode {
		return WriteJSONSuccess(w, cards)
	}
	if len(cards) == 0 {
		fmt.Fprintln(w, "No cards")
		return nil
	}

	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		addr := card.FirstNonBlank(c.URL, c.LanURL, c.WanURL)
		if c.CardType == card.TypeSSH && addr == "" {
			addr = sshTarget(c)
		}
		name := c.Name
		if !c.Enabled {
			name += " (off)"
		}
		rows = append(rows, []string{c.ID, name, c.GroupID, string(c.CardType), addr})
	}
	fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "ID", Width: 18},
		{Title: "Name", Width: 22},
		{Title: "Group", Width: 14},
		{Title: "Type", Width: 13},
		{Title: "Address", Width: 40},
	}, rows))
	return nil
}

// groupsListCommand prints groups with their card counts.
func groupsListCommand(ctx context.Context, w io.Writer, r *remote) error {
	groups, err := r.client.Groups(ctx)
	if err != nil {
		return err
	}
	if machineMode {
		return WriteJSONSuccess(w, groups)
	}
	if len(groups) == 0 {
		fmt.Fprintln(w, "No groups")
		return nil
	}

	cards, err := r.client.Cards(ctx, client.CardQuery{})
	if err != nil {
		return err
	}
	counts := make(map[string]int, len(groups))
	for _, c := range cards {
		counts[c.GroupID]++
	}

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g.ID, g.Name, strconv.Itoa(counts[g.ID])})
	}
	fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "ID", Width: 18},
		{Title: "Name", Width: 24},
		{Title: "Cards", Width: 6},
	}, rows))
	return nil
}
