package qbittorrent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/stats"
)

const sid = "SID"

func qbCard(url string) card.Card {
	return card.Card{
		ID:                  "qb",
		CardType:            card.TypeQBittorrent,
		URL:                 url,
		QBittorrentUsername: "admin",
		QBittorrentPassword: "pw",
	}
}

func newServer(t *testing.T, loginReply string, active []interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "admin", r.PostForm.Get("username"))
		assert.Equal(t, "pw", r.PostForm.Get("password"))
		http.SetCookie(w, &http.Cookie{Name: sid, Value: "token", Path: "/"})
		_, _ = w.Write([]byte(loginReply))
	})
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(sid); err != nil || c.Value != "token" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/api/v2/transfer/info", authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"dl_info_speed": 2048, "up_info_speed": 512})
	}))
	mux.HandleFunc("/api/v2/torrents/info", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") == "active" {
			_ = json.NewEncoder(w).Encode(active)
			return
		}
		_ = json.NewEncoder(w).Encode([]interface{}{
			map[string]interface{}{"state": "downloading"},
			map[string]interface{}{"state": "uploading"},
			map[string]interface{}{"state": "stalledUP"},
			map[string]interface{}{"state": "pausedDL"},
			map[string]interface{}{"state": "missingFiles"},
			map[string]interface{}{"state": "queuedDL"},
			map[string]interface{}{"state": "moving"},
		})
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoad(t *testing.T) {
	srv := newServer(t, "Ok.", []interface{}{map[string]interface{}{"state": "downloading"}})
	snap, err := New(srv.Client().Transport).Load(context.Background(), qbCard(srv.URL))
	require.NoError(t, err)

	ts := snap.(*stats.TorrentStats)
	assert.Equal(t, card.TypeQBittorrent, ts.Kind())
	assert.Equal(t, int64(2048), ts.DownloadSpeed)
	assert.Equal(t, int64(512), ts.UploadSpeed)
	assert.Equal(t, 7, ts.TotalCount)
	assert.Equal(t, 1, ts.ActiveCount)
	assert.Equal(t, ts.TotalCount, ts.StatusBreakdown.Total())
	assert.Equal(t, stats.Breakdown{
		Downloading: 1, Seeding: 1, Paused: 1, Queued: 1, Stalled: 1, Error: 1, Unknown: 1,
	}, ts.StatusBreakdown)
}

func TestLoad_ActiveFallsBackToBreakdown(t *testing.T) {
	srv := newServer(t, "ok", nil)
	snap, err := New(nil).Load(context.Background(), qbCard(srv.URL))
	require.NoError(t, err)
	// downloading + seeding + queued
	assert.Equal(t, 3, snap.(*stats.TorrentStats).ActiveCount)
}

func TestLoad_LoginRejected(t *testing.T) {
	srv := newServer(t, "Fails.", nil)
	_, err := New(nil).Load(context.Background(), qbCard(srv.URL))
	require.Error(t, err)
	assert.Equal(t, "qBittorrent authentication failed", errors.Public(err))
}

func TestLoad_RequiredFields(t *testing.T) {
	p := New(nil)
	c := card.Card{CardType: card.TypeQBittorrent}
	_, err := p.Load(context.Background(), c)
	assert.Equal(t, "qBittorrent URL is required", errors.Public(err))

	c.URL = "http://qb"
	_, err = p.Load(context.Background(), c)
	assert.Equal(t, "qBittorrent username is required", errors.Public(err))

	c.QBittorrentUsername = "admin"
	_, err = p.Load(context.Background(), c)
	assert.Equal(t, "qBittorrent password is required", errors.Public(err))
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, "qBittorrent authentication failed", errors.Public(statusError(401, nil)))
	assert.Equal(t, "qBittorrent API endpoint not found", errors.Public(statusError(404, nil)))
	assert.Equal(t, "qBittorrent request failed (500): boom", errors.Public(statusError(500, []byte(" boom \n"))))
	assert.Equal(t, "qBittorrent request failed (503)", errors.Public(statusError(503, nil)))
}

func TestBucket(t *testing.T) {
	tests := map[string]stats.Bucket{
		"error":              stats.BucketError,
		"missingFiles":       stats.BucketError,
		"downloading":        stats.BucketDownloading,
		"forcedDL":           stats.BucketDownloading,
		"metaDL":             stats.BucketDownloading,
		"uploading":          stats.BucketSeeding,
		"forcedUP":           stats.BucketSeeding,
		"pausedDL":           stats.BucketPaused,
		"pausedUP":           stats.BucketPaused,
		"queuedDL":           stats.BucketQueued,
		"queuedUP":           stats.BucketQueued,
		"checkingUP":         stats.BucketChecking,
		"checkingDL":         stats.BucketChecking,
		"checkingResumeData": stats.BucketChecking,
		"stalledDL":          stats.BucketStalled,
		"stalledUP":          stats.BucketStalled,
		"moving":             stats.BucketUnknown,
		"":                   stats.BucketUnknown,
	}
	for state, want := range tests {
		assert.Equal(t, want, Bucket(state), state)
	}
}

func TestBuildStatusBreakdown_NonObjects(t *testing.T) {
	bd := BuildStatusBreakdown([]interface{}{"x", nil, map[string]interface{}{"state": 5}})
	assert.Equal(t, 3, bd.Unknown)
}
