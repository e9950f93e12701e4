package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/client"
	"github.com/nexusnav/nexusnav/internal/config"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/prefs"
	"github.com/nexusnav/nexusnav/internal/ui"
)

// PasswordEnv supplies the admin password to non-interactive commands.
const PasswordEnv = "NEXUSNAV_ADMIN_PASSWORD"

// remote bundles what every client command needs: the config, the saved
// preferences and an API client for the selected server.
type remote struct {
	cfg    *config.Config
	prefs  prefs.Store
	client *client.Client
	log    logger.Logger
}

// connect loads config and preferences and builds the API client.
func connect() (*remote, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openPrefs()
	if err != nil {
		return nil, err
	}
	return newRemote(cfg, store, serverFlag, clientLogger())
}

// newRemote picks the server from server, then the saved preference, then
// client.server, and seeds the client with the saved session.
func newRemote(cfg *config.Config, store prefs.Store, server string, log logger.Logger) (*remote, error) {
	if log == nil {
		log = logger.Noop()
	}
	p, err := store.Get()
	if err != nil {
		return nil, err
	}

	c, err := client.New(card.FirstNonBlank(server, p.Server, cfg.Client.Server),
		client.WithTimeout(cfg.Client.Timeout),
		client.WithLogger(logger.With(log, "client")),
		client.WithSession(p.Session),
	)
	if err != nil {
		return nil, err
	}
	return &remote{cfg: cfg, prefs: store, client: c, log: log}, nil
}

func openPrefs() (*prefs.FileStore, error) {
	path, err := prefs.DefaultPath()
	if err != nil {
		return nil, err
	}
	return prefs.Open(path)
}

// saveSession persists the session token the client holds, or clears it.
func (r *remote) saveSession() error {
	return r.prefs.SetSession(r.client.Session())
}

// verifyToken trades the admin password for a single-use config token.
// The password comes from NEXUSNAV_ADMIN_PASSWORD or a prompt.
func (r *remote) verifyToken(ctx context.Context) (string, error) {
	password, err := adminPassword("Admin password")
	if err != nil {
		return "", err
	}
	tok, err := r.client.VerifyConfig(ctx, password)
	if err != nil {
		return "", err
	}
	return tok.VerifyToken, nil
}

// adminPassword reads PasswordEnv, then prompts. Machine mode never prompts.
func adminPassword(title string) (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}
	if machineMode {
		return "", errors.New(errors.ErrAuth,
			"Admin password required",
			fmt.Sprintf("Set %s when using --json.", PasswordEnv))
	}
	return promptPassword(title)
}

// promptPassword asks for a secret without echoing it. Tests replace it.
var promptPassword = func(title string) (string, error) {
	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&value),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			fmt.Sprintf("Check terminal compatibility or set %s.", PasswordEnv))
	}
	return value, nil
}

// resolveCard fetches a card by id, or by case-insensitive name when no id
// matches.
func (r *remote) resolveCard(ctx context.Context, ref string) (card.Card, error) {
	c, err := r.client.Card(ctx, ref)
	if err == nil {
		return c, nil
	}
	if !errors.IsCode(err, errors.ErrNotFound) {
		return card.Card{}, err
	}

	cards, listErr := r.client.Cards(ctx, client.CardQuery{})
	if listErr != nil {
		return card.Card{}, listErr
	}
	for _, cd := range cards {
		if strings.EqualFold(cd.Name, ref) {
			return cd, nil
		}
	}
	return card.Card{}, errors.New(errors.ErrNotFound,
		fmt.Sprintf("No card matches '%s'", ref),
		"List cards with `nexusnav cards list`.")
}

// pickCard and interactive are replaced in tests.
var (
	pickCard    = ui.PickCard
	interactive = func() bool { return ui.IsTerminal(os.Stdin) }
)

// cardRef returns args[0], or lets the user pick among the enabled cards
// keep accepts. Machine mode and non-terminal stdin require the argument.
func (r *remote) cardRef(ctx context.Context, args []string, title string, keep func(card.Card) bool) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if machineMode || !interactive() {
		return "", errors.New(errors.ErrValidation,
			"A card is required",
			"Pass a card id or name. List them with `nexusnav cards list`.")
	}

	enabled := true
	cards, err := r.client.Cards(ctx, client.CardQuery{Enabled: &enabled})
	if err != nil {
		return "", err
	}
	infos := make([]ui.CardInfo, 0, len(cards))
	for _, c := range cards {
		if keep != nil && !keep(c) {
			continue
		}
		infos = append(infos, ui.CardInfo{
			ID:    c.ID,
			Name:  c.Name,
			Group: c.GroupID,
			Type:  string(c.CardType),
			URL:   card.FirstNonBlank(c.URL, c.LanURL, c.WanURL),
		})
	}

	picked, err := pickCard(title, infos)
	if err != nil {
		return "", err
	}
	if picked == nil {
		return "", errors.New(errors.ErrValidation, "No card selected", "")
	}
	return picked.ID, nil
}

func isStatsCard(c card.Card) bool { return c.CardType.IsStats() }

func isSSHCard(c card.Card) bool { return c.CardType == card.TypeSSH }

func hasWebAddress(c card.Card) bool {
	return card.IsHTTPURL(card.FirstNonBlank(c.URL, c.LanURL, c.WanURL))
}
