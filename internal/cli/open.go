package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/browser"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/ui"
)

// openCommand opens the card's address for the chosen network mode. The
// --network flag wins over the saved preference; auto keeps the address the
// server resolved for this client.
func openCommand(ctx context.Context, w io.Writer, r *remote, ref, network string, printOnly bool, open func(string) error) error {
	mode, set, err := ParseNetworkFlag(network)
	if err != nil {
		return err
	}
	if !set {
		p, err := r.prefs.Get()
		if err != nil {
			return err
		}
		mode = p.NetworkMode
	}

	cd, err := r.resolveCard(ctx, ref)
	if err != nil {
		return err
	}

	target := cardURL(cd, mode)
	if side := missingSide(cd, mode); side != "" && card.IsHTTPURL(target) && !machineMode {
		ui.PrintWarning(warnOut, fmt.Sprintf("%s has no %s, opening %s", cd.Name, side, target))
	}
	if !card.IsHTTPURL(target) {
		suggestion := "Give the card a url, lanUrl or wanUrl in the nav file."
		if cd.CardType == card.TypeSSH {
			suggestion = "Use `nexusnav ssh " + ref + "` for SSH cards."
		}
		return errors.New(errors.ErrValidation,
			fmt.Sprintf("%s has no web address", cd.Name), suggestion)
	}

	if machineMode {
		return WriteJSONSuccess(w, map[string]string{"id": cd.ID, "url": target})
	}
	if printOnly {
		fmt.Fprintln(w, target)
		return nil
	}

	if open == nil {
		open = browser.OpenURL
	}
	if err := open(target); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot open a browser",
			"Use --print and open the address yourself.")
	}
	fmt.Fprintf(w, "Opened %s\n", target)
	return nil
}

// warnOut receives warnings that must stay out of --print output.
var warnOut io.Writer = os.Stderr

// missingSide names the address field a lan or wan override wanted but the
// card does not have.
func missingSide(cd card.Card, mode card.NetworkMode) string {
	switch {
	case mode == card.NetworkLAN && cd.LanURL == "":
		return "lanUrl"
	case mode == card.NetworkWAN && cd.WanURL == "":
		return "wanUrl"
	}
	return ""
}

// cardURL applies a lan or wan override; auto keeps the served address.
func cardURL(cd card.Card, mode card.NetworkMode) string {
	if mode == card.NetworkLAN || mode == card.NetworkWAN {
		return cd.ResolveURL(mode)
	}
	return card.FirstNonBlank(cd.URL, cd.LanURL, cd.WanURL)
}
