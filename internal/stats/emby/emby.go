// Package emby reads library, session and scheduled-task data from an Emby server.
package emby

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/stats"
)

// mediaCountKeys are the /Items/Counts fields used when no library breakdown is available.
var mediaCountKeys = []string{
	"MovieCount",
	"SeriesCount",
	"EpisodeCount",
	"SongCount",
	"AlbumCount",
	"MusicVideoCount",
	"TrailerCount",
	"BoxSetCount",
	"BookCount",
	"PhotoCount",
	"ProgramCount",
}

// Provider talks to the Emby REST API with the card's api key.
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
func (p *Provider) Kind() card.Type { return card.TypeEmby }

type conn struct {
	baseURL string
	apiKey  string
}

func resolve(c card.Card) (conn, error) {
	base := c.BaseURL()
	if base == "" {
		return conn{}, errors.New(errors.ErrValidation, "Emby URL is required", "")
	}
	key := strings.TrimSpace(c.EmbyAPIKey)
	if key == "" {
		return conn{}, errors.New(errors.ErrValidation, "Emby API key is required", "Add the API key from Emby's dashboard to the card.")
	}
	return conn{baseURL: base, apiKey: key}, nil
}

// Load implements stats.Provider.
func (p *Provider) Load(ctx context.Context, c card.Card) (stats.Snapshot, error) {
	cn, err := resolve(c)
	if err != nil {
		return nil, err
	}

	var (
		wg                 sync.WaitGroup
		counts, sessions   interface{}
		countsErr, sessErr error
		breakdown          []stats.MediaCount
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		counts, countsErr = p.getJSON(ctx, cn, "/Items/Counts", nil)
	}()
	go func() {
		defer wg.Done()
		sessions, sessErr = p.getJSON(ctx, cn, "/Sessions", url.Values{"ActiveWithinSeconds": {"300"}})
	}()
	go func() {
		defer wg.Done()
		breakdown = p.libraryBreakdown(ctx, cn)
	}()
	wg.Wait()

	if countsErr != nil {
		return nil, countsErr
	}
	if sessErr != nil {
		return nil, sessErr
	}

	if len(breakdown) == 0 {
		breakdown = typeBreakdown(counts)
	}
	var total int64
	if len(breakdown) > 0 {
		for _, m := range breakdown {
			total += m.Count
		}
	} else {
		total = countTotal(counts)
	}
	if breakdown == nil {
		breakdown = []stats.MediaCount{}
	}

	list := stats.AsList(sessions)
	return &stats.EmbyStats{
		MediaTotal:      total,
		MediaBreakdown:  breakdown,
		OnlineSessions:  len(list),
		PlayingSessions: countPlaying(list),
	}, nil
}

// libraryBreakdown counts items per collection folder. Failed or empty
// folders are dropped; any top-level failure yields an empty breakdown.
func (p *Provider) libraryBreakdown(ctx context.Context, cn conn) []stats.MediaCount {
	payload, err := p.getJSON(ctx, cn, "/Items", url.Values{
		"IncludeItemTypes": {"CollectionFolder"},
		"Recursive":        {"true"},
		"Limit":            {"200"},
	})
	if err != nil {
		return nil
	}
	folders := itemsArray(payload)
	if len(folders) == 0 {
		return nil
	}

	results := make([]*stats.MediaCount, len(folders))
	var wg sync.WaitGroup
	for i, folder := range folders {
		id := stats.FirstString(folder, "Id", "id")
		name := stats.FirstString(folder, "Name", "name")
		if id == "" || name == "" {
			continue
		}
		wg.Add(1)
		go func(i int, id, name string) {
			defer wg.Done()
			v, err := p.getJSON(ctx, cn, "/Items", url.Values{
				"ParentId":  {id},
				"Recursive": {"true"},
				"Limit":     {"0"},
			})
			if err != nil {
				return
			}
			n := stats.AsInt64(stats.AsRecord(v)["TotalRecordCount"])
			if n <= 0 {
				return
			}
			results[i] = &stats.MediaCount{Key: name, Count: n}
		}(i, id, name)
	}
	wg.Wait()

	var out []stats.MediaCount
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func typeBreakdown(raw interface{}) []stats.MediaCount {
	rec := stats.AsRecord(raw)
	if rec == nil {
		return nil
	}
	var out []stats.MediaCount
	for _, key := range mediaCountKeys {
		if n := stats.AsInt64(rec[key]); n > 0 {
			out = append(out, stats.MediaCount{Key: key, Count: n})
		}
	}
	if len(out) > 0 {
		return out
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		if strings.HasSuffix(k, "Count") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if n := stats.AsInt64(rec[k]); n > 0 {
			out = append(out, stats.MediaCount{Key: k, Count: n})
		}
	}
	return out
}

func countTotal(raw interface{}) int64 {
	var total int64
	for k, v := range stats.AsRecord(raw) {
		if strings.HasSuffix(k, "Count") {
			total += stats.AsInt64(v)
		}
	}
	return total
}

// countPlaying counts sessions with a now-playing item or a playback position.
func countPlaying(sessions []interface{}) int {
	n := 0
	for _, s := range sessions {
		rec := stats.AsRecord(s)
		if rec == nil {
			continue
		}
		if item, ok := rec["NowPlayingItem"]; ok && item != nil {
			n++
			continue
		}
		if ps := stats.AsRecord(rec["PlayState"]); ps != nil {
			if pos, ok := ps["PositionTicks"]; ok && pos != nil {
				n++
			}
		}
	}
	return n
}

func itemsArray(payload interface{}) []map[string]interface{} {
	list := stats.AsList(payload)
	if list == nil {
		list = stats.AsList(stats.AsRecord(payload)["Items"])
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, v := range list {
		if rec := stats.AsRecord(v); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func (p *Provider) getJSON(ctx context.Context, cn conn, path string, q url.Values) (interface{}, error) {
	return p.doJSON(ctx, http.MethodGet, cn, path, q)
}

func (p *Provider) doJSON(ctx context.Context, method string, cn conn, path string, q url.Values) (interface{}, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", cn.apiKey)
	endpoint := cn.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrValidation, "Invalid Emby URL", "")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Emby request failed")
	}
	body, err := stats.ReadBody(resp)
	if err != nil {
		return nil, errors.Wrap(err, "Emby request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(errors.ErrProvider, errorMessage(resp.StatusCode, body), "")
	}
	v, err := stats.DecodeLoose(body)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrProvider, "Emby response is not valid JSON", "")
	}
	return v, nil
}

func errorMessage(status int, body []byte) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "Emby authentication failed"
	case http.StatusNotFound:
		return "Emby API endpoint not found"
	}
	var detail string
	if v, err := stats.DecodeLoose(body); err == nil {
		detail = stats.FirstString(stats.AsRecord(v), "Message", "ErrorMessage", "message")
	}
	if detail != "" {
		return fmt.Sprintf("Emby request failed (%d): %s", status, detail)
	}
	return fmt.Sprintf("Emby request failed (%d)", status)
}
