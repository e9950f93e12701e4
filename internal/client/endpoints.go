package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nexusnav/nexusnav/internal/auth"
	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/navconfig"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/stats"
	"github.com/nexusnav/nexusnav/internal/wire"
)

const apiPrefix = "/api/v1"

func verifyHeader(token string) http.Header {
	if token == "" {
		return nil
	}
	return http.Header{auth.VerifyHeader: {token}}
}

// SessionStatus reports the state of the current session.
func (c *Client) SessionStatus(ctx context.Context) (wire.Session, error) {
	var out wire.Session
	err := c.do(ctx, request{method: http.MethodGet, path: apiPrefix + "/auth/session"}, &out)
	return out, err
}

// Login opens an admin session. The cookie is kept in the jar; Session
// returns it for saving.
func (c *Client) Login(ctx context.Context, password string) (wire.Session, error) {
	var out wire.Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   apiPrefix + "/auth/login",
		body:   wire.PasswordRequest{Password: password},
	}, &out)
	return out, err
}

// Logout ends the session on the server and forgets the cookie.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodPost, path: apiPrefix + "/auth/logout"}, nil)
	c.SetSession("")
	return err
}

// VerifyConfig exchanges the admin password for a single-use config token.
func (c *Client) VerifyConfig(ctx context.Context, password string) (wire.VerifyToken, error) {
	var out wire.VerifyToken
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   apiPrefix + "/auth/verify-config",
		body:   wire.PasswordRequest{Password: password},
	}, &out)
	return out, err
}

// Groups lists every group.
func (c *Client) Groups(ctx context.Context) ([]card.Group, error) {
	var out []card.Group
	err := c.do(ctx, request{method: http.MethodGet, path: apiPrefix + "/groups"}, &out)
	return out, err
}

// CreateGroup adds a group. An empty id is derived from the name.
func (c *Client) CreateGroup(ctx context.Context, g card.Group) (card.Group, error) {
	var out card.Group
	err := c.do(ctx, request{method: http.MethodPost, path: apiPrefix + "/groups", body: g}, &out)
	return out, err
}

// UpdateGroup renames or reorders a group.
func (c *Client) UpdateGroup(ctx context.Context, g card.Group) (card.Group, error) {
	var out card.Group
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   apiPrefix + "/groups/" + url.PathEscape(g.ID) + "/update",
		body:   g,
	}, &out)
	return out, err
}

// DeleteGroup removes a group and its cards.
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPost, path: apiPrefix + "/groups/" + url.PathEscape(id) + "/delete"}, nil)
}

// CardQuery filters Cards. Zero values match everything.
type CardQuery struct {
	GroupID string
	Query   string
	Enabled *bool
}

func (q CardQuery) values() url.Values {
	v := url.Values{}
	if q.GroupID != "" {
		v.Set("groupId", q.GroupID)
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.Enabled != nil {
		v.Set("enabled", strconv.FormatBool(*q.Enabled))
	}
	return v
}

// Cards lists cards with urls resolved for this client's network.
func (c *Client) Cards(ctx context.Context, q CardQuery) ([]card.Card, error) {
	var out []card.Card
	err := c.do(ctx, request{method: http.MethodGet, path: apiPrefix + "/cards", query: q.values()}, &out)
	return out, err
}

// Card fetches one card.
func (c *Client) Card(ctx context.Context, id string) (card.Card, error) {
	var out card.Card
	err := c.do(ctx, request{method: http.MethodGet, path: apiPrefix + "/cards/" + url.PathEscape(id)}, &out)
	return out, err
}

// CreateCard adds a card.
func (c *Client) CreateCard(ctx context.Context, cd card.Card) (card.Card, error) {
	var out card.Card
	err := c.do(ctx, request{method: http.MethodPost, path: apiPrefix + "/cards", body: cd}, &out)
	return out, err
}

// UpdateCard replaces a card. Blank provider secrets keep their stored values.
func (c *Client) UpdateCard(ctx context.Context, cd card.Card) (card.Card, error) {
	var out card.Card
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   apiPrefix + "/cards/" + url.PathEscape(cd.ID) + "/update",
		body:   cd,
	}, &out)
	return out, err
}

// DeleteCard removes a card.
func (c *Client) DeleteCard(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPost, path: apiPrefix + "/cards/" + url.PathEscape(id) + "/delete"}, nil)
}

// UpdateOrder sets orderIndex for the listed cards.
func (c *Client) UpdateOrder(ctx context.Context, items []card.OrderItem) (int, error) {
	var out wire.OrderResult
	err := c.do(ctx, request{method: http.MethodPost, path: apiPrefix + "/cards/order", body: items}, &out)
	return out.Updated, err
}

// Reload re-imports the config files. prune drops database rows the nav
// file no longer lists.
func (c *Client) Reload(ctx context.Context, prune bool, verifyToken string) (wire.ReloadResult, error) {
	var out wire.ReloadResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   apiPrefix + "/config/reload",
		query:  url.Values{"prune": {strconv.FormatBool(prune)}},
		header: verifyHeader(verifyToken),
	}, &out)
	return out, err
}

// ImportNav replaces every group and card with doc.
func (c *Client) ImportNav(ctx context.Context, doc navconfig.Nav, verifyToken string) (wire.ImportResult, error) {
	var out wire.ImportResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   apiPrefix + "/config/import-nav",
		body:   doc,
		header: verifyHeader(verifyToken),
	}, &out)
	return out, err
}

// ExportNav returns the nav document built from the database.
func (c *Client) ExportNav(ctx context.Context) (navconfig.Nav, error) {
	var out navconfig.Nav
	err := c.do(ctx, request{method: http.MethodGet, path: apiPrefix + "/config/export-nav"}, &out)
	return out, err
}

// HealthReport is the server's probe snapshot.
type HealthReport struct {
	Cards     []probe.Health `json:"cards"`
	UpdatedAt int64          `json:"updatedAt"`
}

// Health returns the latest server-side probe results.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var out HealthReport
	err := c.do(ctx, request{method: http.MethodGet, path: "/v1/health"}, &out)
	return out, err
}

// Stats implements stats.Proxy. It is never retried; the window re-polls.
func (c *Client) Stats(ctx context.Context, kind card.Type, cardID string) (stats.Snapshot, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    apiPrefix + "/" + url.PathEscape(string(kind)) + "/cards/" + url.PathEscape(cardID) + "/stats",
		noRetry: true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	var snap stats.Snapshot
	switch kind {
	case card.TypeEmby:
		snap = &stats.EmbyStats{}
	case card.TypeQBittorrent, card.TypeTransmission:
		snap = &stats.TorrentStats{Provider: kind}
	default:
		return nil, errors.Newf(errors.ErrValidation, "Unsupported stats kind: %s", kind)
	}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransport, "Unexpected stats payload from "+c.base.Host, "")
	}
	return snap, nil
}

// EmbyTasks implements stats.Proxy.
func (c *Client) EmbyTasks(ctx context.Context, cardID string) ([]stats.EmbyTask, error) {
	var out []stats.EmbyTask
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    apiPrefix + "/emby/cards/" + url.PathEscape(cardID) + "/tasks",
		noRetry: true,
	}, &out)
	return out, err
}

// RunEmbyTask implements stats.Proxy.
func (c *Client) RunEmbyTask(ctx context.Context, cardID, taskID string) (stats.EmbyTaskRunResult, error) {
	var out stats.EmbyTaskRunResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   apiPrefix + "/emby/cards/" + url.PathEscape(cardID) + "/tasks/" + url.PathEscape(taskID) + "/run",
	}, &out)
	return out, err
}

var _ stats.Proxy = (*Client)(nil)
