package transmission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/stats"
)

func trCard(url string) card.Card {
	return card.Card{
		ID:                   "tr",
		CardType:             card.TypeTransmission,
		URL:                  url,
		TransmissionUsername: "admin",
		TransmissionPassword: "pw",
	}
}

type rpcServer struct {
	mu       sync.Mutex
	requests []string
	sessions []string
	stats    map[string]interface{}
}

func (s *rpcServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req rpcRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		s.mu.Lock()
		s.requests = append(s.requests, req.Method)
		s.sessions = append(s.sessions, r.Header.Get(SessionHeader))
		s.mu.Unlock()

		if r.Header.Get(SessionHeader) != "abc" {
			w.Header().Set(SessionHeader, "abc")
			w.WriteHeader(http.StatusConflict)
			return
		}
		switch req.Method {
		case "session-stats":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": "success", "arguments": s.stats})
		case "torrent-get":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": "success", "arguments": map[string]interface{}{
				"torrents": []interface{}{
					map[string]interface{}{"status": 4, "error": 0},
					map[string]interface{}{"status": 6, "error": 0},
					map[string]interface{}{"status": 6, "error": 3},
					map[string]interface{}{"status": 0},
					map[string]interface{}{"status": 2},
					map[string]interface{}{"status": 5},
					map[string]interface{}{"status": 9},
					"garbage",
				},
			}})
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": "method not recognized"})
		}
	}
}

func TestLoad_SessionHandshake(t *testing.T) {
	rs := &rpcServer{stats: map[string]interface{}{
		"downloadSpeed":      1000,
		"uploadSpeed":        20,
		"torrentCount":       8,
		"activeTorrentCount": 2,
	}}
	mux := http.NewServeMux()
	mux.HandleFunc("/transmission/rpc", rs.handler(t))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	snap, err := New(srv.Client()).Load(context.Background(), trCard(srv.URL))
	require.NoError(t, err)

	ts := snap.(*stats.TorrentStats)
	assert.Equal(t, int64(1000), ts.DownloadSpeed)
	assert.Equal(t, int64(20), ts.UploadSpeed)
	assert.Equal(t, 8, ts.TotalCount)
	assert.Equal(t, 2, ts.ActiveCount)
	assert.Equal(t, stats.Breakdown{
		Downloading: 1, Seeding: 1, Error: 1, Paused: 1, Checking: 1, Queued: 1, Unknown: 2,
	}, ts.StatusBreakdown)

	// 409 challenge, replay, then torrent-get reuses the session id.
	assert.Equal(t, []string{"session-stats", "session-stats", "torrent-get"}, rs.requests)
	assert.Equal(t, []string{"", "abc", "abc"}, rs.sessions)
}

func TestLoad_FallsBackToSecondEndpoint(t *testing.T) {
	rs := &rpcServer{stats: map[string]interface{}{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", rs.handler(t))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	snap, err := New(srv.Client()).Load(context.Background(), trCard(srv.URL))
	require.NoError(t, err)

	ts := snap.(*stats.TorrentStats)
	// counts come from the torrent list when session-stats omits them
	assert.Equal(t, 8, ts.TotalCount)
	assert.Equal(t, 4, ts.ActiveCount)
	assert.Equal(t, ts.TotalCount, ts.StatusBreakdown.Total())
}

func TestLoad_LastErrorReported(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(srv.Client()).Load(context.Background(), trCard(srv.URL))
	require.Error(t, err)
	assert.Equal(t, "Transmission RPC endpoint not found", errors.Public(err))
}

func TestLoad_ChallengeWithoutSessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	_, err := New(srv.Client()).Load(context.Background(), trCard(srv.URL))
	assert.Equal(t, "Transmission session id challenge failed", errors.Public(err))
}

func TestLoad_RPCFailureAndBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"no permission"}`))
	}))
	defer srv.Close()
	_, err := New(srv.Client()).Load(context.Background(), trCard(srv.URL))
	assert.Equal(t, "Transmission RPC failed: no permission", errors.Public(err))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer bad.Close()
	_, err = New(bad.Client()).Load(context.Background(), trCard(bad.URL))
	assert.Equal(t, "Transmission response is not valid JSON", errors.Public(err))
}

func TestLoad_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := trCard(srv.URL)
	_, err := New(srv.Client()).Load(context.Background(), c)
	assert.Equal(t, "Transmission authentication failed", errors.Public(err))
}

func TestLoad_RequiredFields(t *testing.T) {
	p := New(nil)
	c := card.Card{CardType: card.TypeTransmission}
	_, err := p.Load(context.Background(), c)
	assert.Equal(t, "Transmission URL is required", errors.Public(err))

	c.LanURL = "http://nas:9091"
	_, err = p.Load(context.Background(), c)
	assert.Equal(t, "Transmission username is required", errors.Public(err))

	c.TransmissionUsername = "admin"
	_, err = p.Load(context.Background(), c)
	assert.Equal(t, "Transmission password is required", errors.Public(err))
}

func TestBucket(t *testing.T) {
	want := map[int64]stats.Bucket{
		0: stats.BucketPaused,
		1: stats.BucketChecking,
		2: stats.BucketChecking,
		3: stats.BucketQueued,
		4: stats.BucketDownloading,
		5: stats.BucketQueued,
		6: stats.BucketSeeding,
		7: stats.BucketUnknown,
	}
	for code, b := range want {
		assert.Equal(t, b, Bucket(code), code)
	}
	assert.Equal(t, stats.BucketUnknown, Bucket(-1))
}
