package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/prefs"
	"github.com/nexusnav/nexusnav/internal/ui"
)

// loginCommand opens an admin session and saves it, together with the
// server it belongs to.
func loginCommand(ctx context.Context, w io.Writer, r *remote) error {
	status, err := r.client.SessionStatus(ctx)
	if err != nil {
		return err
	}
	if !status.SecurityEnabled {
		return reportSession(w, r, status.Authenticated, "Security is off; no login needed")
	}

	password, err := adminPassword("Admin password for " + r.client.Server())
	if err != nil {
		return err
	}
	sess, err := r.client.Login(ctx, password)
	if err != nil {
		return err
	}
	if err := r.saveSession(); err != nil {
		return err
	}
	if err := r.prefs.SetServer(r.client.Server()); err != nil {
		return err
	}

	msg := "Logged in"
	if sess.SessionTimeoutMinutes > 0 {
		msg = fmt.Sprintf("Logged in for %d minutes", sess.SessionTimeoutMinutes)
	}
	return reportSession(w, r, sess.Authenticated, msg)
}

// logoutCommand ends the session on the server and forgets it locally.
// The saved token is cleared even when the server cannot be reached.
func logoutCommand(ctx context.Context, w io.Writer, r *remote) error {
	err := r.client.Logout(ctx)
	if saveErr := r.saveSession(); saveErr != nil {
		return saveErr
	}
	if err != nil {
		return err
	}
	return reportSession(w, r, false, "Logged out")
}

func reportSession(w io.Writer, r *remote, authenticated bool, msg string) error {
	if machineMode {
		return WriteJSONSuccess(w, map[string]interface{}{
			"server":        r.client.Server(),
			"authenticated": authenticated,
			"message":       msg,
		})
	}
	fmt.Fprintf(w, "%s %s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), msg,
		ui.MutedStyle().Render("("+r.client.Server()+")"))
	return nil
}

// networkCommand prints the saved network mode, or saves mode when given.
func networkCommand(w io.Writer, store prefs.Store, mode string) error {
	if mode != "" {
		parsed, err := card.ParseNetworkMode(mode)
		if err != nil {
			return err
		}
		if err := store.SetNetworkMode(parsed); err != nil {
			return err
		}
	}

	p, err := store.Get()
	if err != nil {
		return err
	}
	if machineMode {
		return WriteJSONSuccess(w, map[string]string{"networkMode": string(p.NetworkMode)})
	}
	fmt.Fprintf(w, "network mode: %s\n", p.NetworkMode)
	return nil
}
