package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/navconfig"
	"github.com/nexusnav/nexusnav/internal/ui"
	"github.com/nexusnav/nexusnav/internal/util"
)

// importCommand validates a nav file locally, then replaces the server's
// groups and cards with it.
func importCommand(ctx context.Context, w io.Writer, r *remote, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot read "+path,
			"Check the path and its permissions.")
	}

	var doc navconfig.Nav
	if err := navconfig.Decode(data, navconfig.FormatOf(path), &doc); err != nil {
		return err
	}
	if err := navconfig.NormalizeNav(&doc); err != nil {
		return err
	}
	if err := navconfig.ValidateNav(doc); err != nil {
		return err
	}

	token, err := r.verifyToken(ctx)
	if err != nil {
		return err
	}
	res, err := r.client.ImportNav(ctx, doc, token)
	if err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(w, res)
	}
	fmt.Fprintf(w, "%s Imported %s and %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess),
		util.Count(res.Groups, "group", "groups"), util.Count(res.Cards, "card", "cards"))
	return nil
}

// exportCommand writes the server's nav document to output, or yaml on w.
func exportCommand(ctx context.Context, w io.Writer, r *remote, output string) error {
	doc, err := r.client.ExportNav(ctx)
	if err != nil {
		return err
	}

	if output == "" {
		if machineMode {
			return WriteJSONSuccess(w, doc)
		}
		data, err := navconfig.Encode(doc, navconfig.FormatYAML)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	data, err := navconfig.Encode(doc, navconfig.FormatOf(output))
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write "+output,
			"Check the directory exists and is writable.")
	}

	if machineMode {
		return WriteJSONSuccess(w, map[string]interface{}{
			"path":   output,
			"groups": len(doc.Groups),
			"cards":  len(doc.Cards),
		})
	}
	fmt.Fprintf(w, "%s Wrote %s and %s to %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess),
		util.Count(len(doc.Groups), "group", "groups"), util.Count(len(doc.Cards), "card", "cards"), output)
	return nil
}

// reloadCommand asks the server to import its config files again.
func reloadCommand(ctx context.Context, w io.Writer, r *remote, prune bool) error {
	token, err := r.verifyToken(ctx)
	if err != nil {
		return err
	}
	res, err := r.client.Reload(ctx, prune, token)
	if err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(w, res)
	}
	symbol := ui.MutedStyle().Render(ui.SymbolSkipped)
	if res.Changed {
		symbol = ui.SuccessStyle().Render(ui.SymbolSuccess)
	}
	fmt.Fprintf(w, "%s %s\n", symbol, res.Message)
	return nil
}
