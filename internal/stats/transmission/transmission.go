// Package transmission reads session and torrent state over Transmission RPC.
package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/stats"
)

// SessionHeader carries the CSRF token Transmission hands out with a 409.
const SessionHeader = "X-Transmission-Session-Id"

// Endpoints are tried in order until one answers both RPC calls.
var Endpoints = []string{"/transmission/rpc", "/rpc"}

// Provider calls Transmission RPC with basic auth.
type Provider struct {
	HTTP *http.Client
}

// New returns a provider using client, or a fresh client when nil.
func New(client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{}
	}
	return &Provider{HTTP: client}
}

// Kind implements stats.Provider.
func (p *Provider) Kind() card.Type { return card.TypeTransmission }

type rpcRequest struct {
	Method    string      `json:"method"`
	Arguments interface{} `json:"arguments,omitempty"`
}

type rpcConn struct {
	http      *http.Client
	url       string
	user      string
	pass      string
	sessionID string
}

// Load implements stats.Provider.
func (p *Provider) Load(ctx context.Context, c card.Card) (stats.Snapshot, error) {
	base := c.BaseURL()
	if base == "" {
		return nil, errors.New(errors.ErrValidation, "Transmission URL is required", "")
	}
	user := strings.TrimSpace(c.TransmissionUsername)
	if user == "" {
		return nil, errors.New(errors.ErrValidation, "Transmission username is required", "")
	}
	pass := strings.TrimSpace(c.TransmissionPassword)
	if pass == "" {
		return nil, errors.New(errors.ErrValidation, "Transmission password is required", "")
	}

	var lastErr error
	for _, endpoint := range Endpoints {
		rc := &rpcConn{http: p.HTTP, url: base + endpoint, user: user, pass: pass}
		snap, err := rc.fetch(ctx)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New(errors.ErrProvider, "Transmission request failed", "")
	}
	return nil, lastErr
}

func (rc *rpcConn) fetch(ctx context.Context) (*stats.TorrentStats, error) {
	sessionStats, err := rc.call(ctx, rpcRequest{Method: "session-stats"})
	if err != nil {
		return nil, err
	}
	torrentGet, err := rc.call(ctx, rpcRequest{
		Method:    "torrent-get",
		Arguments: map[string]interface{}{"fields": []string{"status", "error"}},
	})
	if err != nil {
		return nil, err
	}

	args := stats.AsRecord(sessionStats["arguments"])
	torrents := stats.AsList(stats.AsRecord(torrentGet["arguments"])["torrents"])
	breakdown := BuildStatusBreakdown(torrents)

	total := int(stats.AsInt64(args["torrentCount"]))
	if total <= 0 {
		total = len(torrents)
	}
	active := int(stats.AsInt64(args["activeTorrentCount"]))
	if active <= 0 {
		active = breakdown.Active()
	}

	return &stats.TorrentStats{
		Provider:        card.TypeTransmission,
		DownloadSpeed:   stats.AsInt64(args["downloadSpeed"]),
		UploadSpeed:     stats.AsInt64(args["uploadSpeed"]),
		ActiveCount:     active,
		TotalCount:      total,
		StatusBreakdown: breakdown,
	}, nil
}

// call posts one RPC request, replaying it once with the issued session id on 409.
func (rc *rpcConn) call(ctx context.Context, body rpcRequest) (map[string]interface{}, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrProvider, "Cannot serialize Transmission request", "")
	}

	resp, err := rc.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusConflict {
		resp.Body.Close()
		next := strings.TrimSpace(resp.Header.Get(SessionHeader))
		if next == "" {
			return nil, errors.New(errors.ErrProvider, "Transmission session id challenge failed", "")
		}
		rc.sessionID = next
		if resp, err = rc.post(ctx, payload); err != nil {
			return nil, err
		}
	}
	return parse(resp)
}

func (rc *rpcConn) post(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrValidation, "Invalid Transmission URL", "")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(rc.user, rc.pass)
	if rc.sessionID != "" {
		req.Header.Set(SessionHeader, rc.sessionID)
	}
	resp, err := rc.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Transmission request failed")
	}
	return resp, nil
}

func parse(resp *http.Response) (map[string]interface{}, error) {
	body, err := stats.ReadBody(resp)
	if err != nil {
		return nil, errors.Wrap(err, "Transmission request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, nil
	}
	v, err := stats.DecodeLoose(body)
	rec := stats.AsRecord(v)
	if err != nil || rec == nil {
		return nil, errors.New(errors.ErrProvider, "Transmission response is not valid JSON", "")
	}
	if result := stats.AsString(rec["result"]); result != "" && !strings.EqualFold(result, "success") {
		return nil, errors.Newf(errors.ErrProvider, "Transmission RPC failed: %s", result)
	}
	return rec, nil
}

func statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.New(errors.ErrProvider, "Transmission authentication failed", "Check the username and password on the card.")
	case http.StatusNotFound:
		return errors.New(errors.ErrProvider, "Transmission RPC endpoint not found", "")
	}
	if detail := stats.Truncate(strings.TrimSpace(string(body)), 180); detail != "" {
		return errors.Newf(errors.ErrProvider, "Transmission request failed (%d): %s", status, detail)
	}
	return errors.Newf(errors.ErrProvider, "Transmission request failed (%d)", status)
}

// BuildStatusBreakdown buckets torrent-get entries by status code. A non-zero
// error field wins over the status; entries that are not objects are unknown.
func BuildStatusBreakdown(torrents []interface{}) stats.Breakdown {
	var bd stats.Breakdown
	for _, t := range torrents {
		rec := stats.AsRecord(t)
		if rec == nil {
			bd.Add(stats.BucketUnknown)
			continue
		}
		if stats.AsNumber(rec["error"]) > 0 {
			bd.Add(stats.BucketError)
			continue
		}
		bd.Add(Bucket(stats.AsInt64(rec["status"])))
	}
	return bd
}

// Bucket maps a Transmission torrent status code to its canonical bucket.
func Bucket(status int64) stats.Bucket {
	switch status {
	case 0:
		return stats.BucketPaused
	case 1, 2:
		return stats.BucketChecking
	case 3, 5:
		return stats.BucketQueued
	case 4:
		return stats.BucketDownloading
	case 6:
		return stats.BucketSeeding
	default:
		return stats.BucketUnknown
	}
}
