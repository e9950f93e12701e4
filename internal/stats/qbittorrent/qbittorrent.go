// Package qbittorrent reads transfer and torrent state from the qBittorrent Web API.
package qbittorrent

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/stats"
)

// Provider logs in with the card credentials on every Load. The session
// cookie lives in a jar scoped to that call.
type Provider struct {
	Transport http.RoundTripper
}

// New returns a provider. A nil transport uses http.DefaultTransport.
func New(transport http.RoundTripper) *Provider {
	return &Provider{Transport: transport}
}

// Kind implements stats.Provider.
func (p *Provider) Kind() card.Type { return card.TypeQBittorrent }

type session struct {
	http    *http.Client
	baseURL string
}

// Load implements stats.Provider.
func (p *Provider) Load(ctx context.Context, c card.Card) (stats.Snapshot, error) {
	base, user, pass, err := credentials(c)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "qBittorrent request failed")
	}
	s := &session{
		http:    &http.Client{Transport: p.Transport, Jar: jar},
		baseURL: base,
	}
	if err := s.login(ctx, user, pass); err != nil {
		return nil, err
	}

	var (
		wg                    sync.WaitGroup
		transfer, all, active interface{}
		errs                  [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		transfer, errs[0] = s.getJSON(ctx, "/api/v2/transfer/info")
	}()
	go func() {
		defer wg.Done()
		all, errs[1] = s.getJSON(ctx, "/api/v2/torrents/info?filter=all")
	}()
	go func() {
		defer wg.Done()
		active, errs[2] = s.getJSON(ctx, "/api/v2/torrents/info?filter=active")
	}()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	torrents := stats.AsList(all)
	breakdown := BuildStatusBreakdown(torrents)
	activeCount := len(stats.AsList(active))
	if activeCount == 0 {
		activeCount = breakdown.Active()
	}
	rec := stats.AsRecord(transfer)

	return &stats.TorrentStats{
		Provider:        card.TypeQBittorrent,
		DownloadSpeed:   int64(stats.FirstNumber(rec, "dl_info_speed", "dl_speed", "dlspeed")),
		UploadSpeed:     int64(stats.FirstNumber(rec, "up_info_speed", "up_speed", "upspeed")),
		ActiveCount:     activeCount,
		TotalCount:      len(torrents),
		StatusBreakdown: breakdown,
	}, nil
}

// BuildStatusBreakdown buckets torrents by their lowercase state field.
func BuildStatusBreakdown(torrents []interface{}) stats.Breakdown {
	var bd stats.Breakdown
	for _, t := range torrents {
		bd.Add(Bucket(stats.AsString(stats.AsRecord(t)["state"])))
	}
	return bd
}

// Bucket maps a qBittorrent torrent state to its canonical bucket.
func Bucket(state string) stats.Bucket {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "error", "missingfiles":
		return stats.BucketError
	case "downloading", "forceddl", "metadl":
		return stats.BucketDownloading
	case "uploading", "forcedup":
		return stats.BucketSeeding
	case "pauseddl", "pausedup":
		return stats.BucketPaused
	case "queueddl", "queuedup":
		return stats.BucketQueued
	case "checkingup", "checkingdl", "checkingresumedata":
		return stats.BucketChecking
	case "stalleddl", "stalledup":
		return stats.BucketStalled
	default:
		return stats.BucketUnknown
	}
}

func credentials(c card.Card) (base, user, pass string, err error) {
	base = c.BaseURL()
	if base == "" {
		return "", "", "", errors.New(errors.ErrValidation, "qBittorrent URL is required", "")
	}
	user = strings.TrimSpace(c.QBittorrentUsername)
	if user == "" {
		return "", "", "", errors.New(errors.ErrValidation, "qBittorrent username is required", "")
	}
	pass = strings.TrimSpace(c.QBittorrentPassword)
	if pass == "" {
		return "", "", "", errors.New(errors.ErrValidation, "qBittorrent password is required", "")
	}
	return base, user, pass, nil
}

func (s *session) login(ctx context.Context, user, pass string) error {
	form := url.Values{"username": {user}, "password": {pass}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrValidation, "Invalid qBittorrent URL", "")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := s.do(req)
	if err != nil {
		return err
	}
	text := strings.ToLower(strings.TrimSpace(string(body)))
	if text != "ok." && text != "ok" {
		return errors.New(errors.ErrProvider, "qBittorrent authentication failed", "Check the username and password on the card.")
	}
	return nil
}

func (s *session) getJSON(ctx context.Context, path string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrValidation, "Invalid qBittorrent URL", "")
	}
	req.Header.Set("Accept", "application/json")

	body, err := s.do(req)
	if err != nil {
		return nil, err
	}
	v, err := stats.DecodeLoose(body)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrProvider, "qBittorrent response is not valid JSON", "")
	}
	return v, nil
}

func (s *session) do(req *http.Request) ([]byte, error) {
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "qBittorrent request failed")
	}
	body, err := stats.ReadBody(resp)
	if err != nil {
		return nil, errors.Wrap(err, "qBittorrent request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

func statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.New(errors.ErrProvider, "qBittorrent authentication failed", "")
	case http.StatusNotFound:
		return errors.New(errors.ErrProvider, "qBittorrent API endpoint not found", "")
	}
	if detail := stats.Truncate(strings.TrimSpace(string(body)), 180); detail != "" {
		return errors.Newf(errors.ErrProvider, "qBittorrent request failed (%d): %s", status, detail)
	}
	return errors.Newf(errors.ErrProvider, "qBittorrent request failed (%d)", status)
}
