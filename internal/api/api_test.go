package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexusnav/nexusnav/internal/auth"
	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/navconfig"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/stats"
	"github.com/nexusnav/nexusnav/internal/stats/emby"
	"github.com/nexusnav/nexusnav/internal/stats/qbittorrent"
	"github.com/nexusnav/nexusnav/internal/stats/transmission"
	"github.com/nexusnav/nexusnav/internal/storage"
	"github.com/nexusnav/nexusnav/internal/wire"
)

const testPassword = "letmein"

type env struct {
	t       *testing.T
	dir     string
	handler http.Handler
	store   *storage.Store
	mgr     *navconfig.Manager
	health  *probe.Engine
	log     *logger.BufferLogger
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func navDoc(embyURL string) string {
	return `{
  "version": "1",
  "groups": [{"id": "media", "name": "Media", "orderIndex": 0}],
  "cards": [
    {"id": "emby", "groupId": "media", "name": "Emby", "lanUrl": "` + embyURL + `", "wanUrl": "https://emby.example.com",
     "openMode": "NEW_TAB", "cardType": "emby", "embyApiKey": "secret", "enabled": true, "orderIndex": 0},
    {"id": "router", "groupId": "media", "name": "Router", "url": "http://192.168.1.1", "openMode": "NEW_TAB",
     "cardType": "generic", "enabled": true, "orderIndex": 1}
  ]
}`
}

func newEnv(t *testing.T, embyURL string) *env {
	t.Helper()
	dir := t.TempDir()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	sys := `{"adminPassword": "` + string(hash) + `", "networkModePreference": "auto",
  "defaultSearchEngineId": "ddg",
  "searchEngines": [{"id": "ddg", "name": "DuckDuckGo", "lanUrl": "https://duckduckgo.com/?q={query}"}],
  "security": {"enabled": true, "sessionTimeoutMinutes": 30, "requireAuthForConfig": false}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nav.json"), []byte(navDoc(embyURL)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system.json"), []byte(sys), 0o644))

	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Options{Path: storage.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := logger.NewBufferLogger()
	mgr, err := navconfig.New(st, navconfig.Options{
		NavPath:    filepath.Join(dir, "nav.json"),
		SystemPath: filepath.Join(dir, "system.json"),
		Logger:     log,
	})
	require.NoError(t, err)
	_, err = mgr.Import(ctx, true)
	require.NoError(t, err)

	authSvc, err := auth.New(mgr, auth.WithSecret([]byte("test-secret")))
	require.NoError(t, err)

	client := stats.NewClient([]stats.Provider{
		emby.New(nil),
		qbittorrent.New(nil),
		transmission.New(nil),
	})

	health := probe.NewEngine(probe.ProberFunc(func(context.Context, string) (time.Duration, error) {
		return 12 * time.Millisecond, nil
	}))

	h := NewRouter(Services{
		Store:  st,
		Config: mgr,
		Auth:   authSvc,
		Stats:  client,
		Health: health,
	}, Options{
		Logger:         log,
		AllowedOrigins: []string{"*"},
		Registry:       prometheus.NewRegistry(),
	})
	return &env{t: t, dir: dir, handler: h, store: st, mgr: mgr, health: health, log: log}
}

type reqOpt func(*http.Request)

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) {
		if c != nil {
			r.AddCookie(c)
		}
	}
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (e *env) do(method, path string, body interface{}, opts ...reqOpt) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data), string(resp.Data))
	}
	return resp
}

func (e *env) login() *http.Cookie {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/v1/auth/login", wire.PasswordRequest{Password: testPassword})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	e.t.Fatal("login set no session cookie")
	return nil
}

func TestUnauthorizedEnvelope(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	rec := e.do(http.MethodGet, "/api/v1/groups", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":401,"message":"Unauthorized","data":null}`, rec.Body.String())

	rec = e.do(http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicRoutes(t *testing.T) {
	e := newEnv(t, "http://emby.lan")

	rec := e.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var sys navconfig.PublicView
	rec = e.do(http.MethodGet, "/api/v1/system/config", nil, withHeader("X-Forwarded-For", "10.0.0.7"))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec, &sys)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "ok", resp.Message)
	assert.True(t, sys.SecurityEnabled)
	assert.Equal(t, card.NetworkLAN, sys.ResolvedNetworkMode)
	assert.NotContains(t, rec.Body.String(), "adminPassword")

	var st wire.Session
	rec = e.do(http.MethodGet, "/api/v1/auth/session", nil)
	decode(t, rec, &st)
	assert.False(t, st.Authenticated)
	assert.True(t, st.SecurityEnabled)
}

func TestLoginFlow(t *testing.T) {
	e := newEnv(t, "http://emby.lan")

	rec := e.do(http.MethodPost, "/api/v1/auth/login", wire.PasswordRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", decode(t, rec, nil).Message)

	rec = e.do(http.MethodPost, "/api/v1/auth/login", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is required", decode(t, rec, nil).Message)

	cookie := e.login()
	assert.True(t, cookie.HttpOnly)

	var st wire.Session
	decode(t, e.do(http.MethodGet, "/api/v1/auth/session", nil, withCookie(cookie)), &st)
	assert.True(t, st.Authenticated)
	assert.Equal(t, 30, st.SessionTimeoutMinutes)

	rec = e.do(http.MethodGet, "/api/v1/groups", nil, withCookie(cookie))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, "/api/v1/auth/logout", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.Negative(t, cleared[0].MaxAge)

	rec = e.do(http.MethodGet, "/api/v1/groups", nil, withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSecurityDisabled(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	_, err := e.mgr.UpdateSystem(context.Background(), func(s *navconfig.System) error {
		s.Security.Enabled = false
		return nil
	})
	require.NoError(t, err)

	rec := e.do(http.MethodGet, "/api/v1/cards", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var st wire.Session
	rec = e.do(http.MethodPost, "/api/v1/auth/login", wire.PasswordRequest{Password: "anything"})
	decode(t, rec, &st)
	assert.True(t, st.Authenticated)
	assert.Empty(t, rec.Result().Cookies())
}

func TestGroupAndCardCRUD(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	cookie := e.login()

	var g card.Group
	rec := e.do(http.MethodPost, "/api/v1/groups", map[string]interface{}{"name": "Dev Tools", "orderIndex": 1}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &g)
	assert.Equal(t, "dev-tools", g.ID)

	var c card.Card
	rec = e.do(http.MethodPost, "/api/v1/cards", map[string]interface{}{
		"groupId": "dev-tools", "name": "Grafana", "url": "https://grafana.example.com",
		"openMode": "NEW_TAB", "cardType": "generic",
	}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &c)
	assert.NotEmpty(t, c.ID)
	assert.True(t, c.Enabled)
	assert.True(t, c.HealthCheckEnabled)

	// Mutations are written back to the nav file.
	raw, err := os.ReadFile(filepath.Join(e.dir, "nav.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Grafana")

	rec = e.do(http.MethodPost, "/api/v1/cards/"+c.ID+"/update", map[string]interface{}{
		"groupId": "dev-tools", "name": "Grafana Prod", "url": "https://grafana.example.com",
		"openMode": "NEW_TAB", "cardType": "generic", "enabled": false,
	}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list []card.Card
	decode(t, e.do(http.MethodGet, "/api/v1/cards?q=grafana", nil, withCookie(cookie)), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Grafana Prod", list[0].Name)
	assert.False(t, list[0].Enabled)

	decode(t, e.do(http.MethodGet, "/api/v1/cards?enabled=true", nil, withCookie(cookie)), &list)
	for _, c := range list {
		assert.True(t, c.Enabled)
	}

	rec = e.do(http.MethodGet, "/api/v1/cards?enabled=maybe", nil, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid enabled value: maybe", decode(t, rec, nil).Message)

	var order wire.OrderResult
	rec = e.do(http.MethodPost, "/api/v1/cards/order", []card.OrderItem{{ID: "router", OrderIndex: 0}, {ID: "emby", OrderIndex: 1}}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &order)
	assert.Equal(t, 2, order.Updated)

	rec = e.do(http.MethodPost, "/api/v1/cards/"+c.ID+"/delete", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":0,"message":"ok","data":null}`, rec.Body.String())

	rec = e.do(http.MethodGet, "/api/v1/cards/"+c.ID, nil, withCookie(cookie))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Card not found: "+c.ID, decode(t, rec, nil).Message)

	rec = e.do(http.MethodPost, "/api/v1/groups/dev-tools/delete", nil, withCookie(cookie))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCardValidation(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	cookie := e.login()

	rec := e.do(http.MethodPost, "/api/v1/cards", "{not json", withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode(t, rec, nil).Message)

	rec = e.do(http.MethodPost, "/api/v1/cards", map[string]interface{}{
		"groupId": "missing", "name": "X", "url": "http://x", "openMode": "NEW_TAB", "cardType": "generic",
	}, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Group not found: missing", decode(t, rec, nil).Message)

	rec = e.do(http.MethodPost, "/api/v1/groups", map[string]string{"name": "  "}, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCardURLsFollowNetworkMode(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	cookie := e.login()

	var c card.Card
	decode(t, e.do(http.MethodGet, "/api/v1/cards/emby", nil, withCookie(cookie), withHeader("X-Forwarded-For", "192.168.1.20")), &c)
	assert.Equal(t, "http://emby.lan", c.URL)

	decode(t, e.do(http.MethodGet, "/api/v1/cards/emby", nil, withCookie(cookie), withHeader("X-Forwarded-For", "8.8.8.8, 10.0.0.1")), &c)
	assert.Equal(t, "https://emby.example.com", c.URL)
	assert.Equal(t, "secret", c.EmbyAPIKey)
}

func TestUpdateCardKeepsBlankSecrets(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	cookie := e.login()

	rec := e.do(http.MethodPost, "/api/v1/cards/emby/update", map[string]interface{}{
		"groupId": "media", "name": "Emby Server", "lanUrl": "http://emby.lan",
		"openMode": "NEW_TAB", "cardType": "emby",
	}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := e.store.GetCard(context.Background(), "emby")
	require.NoError(t, err)
	assert.Equal(t, "Emby Server", stored.Name)
	assert.Equal(t, "secret", stored.EmbyAPIKey)
}

func TestVerifyTokenGuardsConfigChanges(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	cookie := e.login()
	_, err := e.mgr.UpdateSystem(context.Background(), func(s *navconfig.System) error {
		s.Security.RequireAuthForConfig = true
		return nil
	})
	require.NoError(t, err)

	rec := e.do(http.MethodPost, "/api/v1/config/reload", nil, withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Config verification required", decode(t, rec, nil).Message)

	rec = e.do(http.MethodPost, "/api/v1/auth/verify-config", wire.PasswordRequest{Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var vt wire.VerifyToken
	rec = e.do(http.MethodPost, "/api/v1/auth/verify-config", wire.PasswordRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &vt)
	assert.Equal(t, 300, vt.ExpiresInSeconds)

	var res wire.ReloadResult
	rec = e.do(http.MethodPost, "/api/v1/config/reload?prune=true", nil, withCookie(cookie), withHeader(auth.VerifyHeader, vt.VerifyToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &res)
	assert.True(t, res.Prune)

	rec = e.do(http.MethodPost, "/api/v1/config/reload", nil, withCookie(cookie), withHeader(auth.VerifyHeader, vt.VerifyToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "verify tokens are single use")
}

func TestReloadWithoutVerification(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	cookie := e.login()

	var res wire.ReloadResult
	rec := e.do(http.MethodPost, "/api/v1/config/reload", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &res)
	assert.False(t, res.Changed)
	assert.NotEmpty(t, res.Message)
}

func TestAdminConfig(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	cookie := e.login()

	rec := e.do(http.MethodGet, "/api/v1/system/admin-config", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "adminPassword")

	update := map[string]interface{}{
		"networkModePreference": "wan",
		"defaultSearchEngineId": "g",
		"backgroundType":        "gradient",
		"searchEngines":         []map[string]string{{"id": "g", "name": "Google", "searchUrlTemplate": "https://google.com/search?q={query}"}},
		"security":              map[string]interface{}{"enabled": true, "sessionTimeoutMinutes": 60, "requireAuthForConfig": false},
	}
	var view navconfig.AdminView
	rec = e.do(http.MethodPost, "/api/v1/system/admin-config", update, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &view)
	assert.Equal(t, card.NetworkWAN, view.NetworkModePreference)
	assert.Equal(t, 60, view.Security.SessionTimeoutMinutes)

	update["defaultSearchEngineId"] = "missing"
	rec = e.do(http.MethodPost, "/api/v1/system/admin-config", update, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "defaultSearchEngineId not found in searchEngines", decode(t, rec, nil).Message)
}

func TestImportAndExportNav(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	cookie := e.login()

	doc := map[string]interface{}{
		"version": "2",
		"groups":  []map[string]interface{}{{"id": "ops", "name": "Ops"}},
		"cards": []map[string]interface{}{{
			"id": "ci", "groupId": "ops", "name": "CI", "url": "https://ci.example.com",
			"openMode": "NEW_TAB", "cardType": "generic", "enabled": true,
		}},
	}
	var res wire.ImportResult
	rec := e.do(http.MethodPost, "/api/v1/config/import-nav", doc, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &res)
	assert.Equal(t, wire.ImportResult{Groups: 1, Cards: 1, Message: "Nav config imported"}, res)

	var nav navconfig.Nav
	decode(t, e.do(http.MethodGet, "/api/v1/config/export-nav", nil, withCookie(cookie)), &nav)
	require.Len(t, nav.Cards, 1)
	assert.Equal(t, "ci", nav.Cards[0].ID)
	require.Len(t, nav.Groups, 1)
	assert.Equal(t, "ops", nav.Groups[0].ID)
}

func newEmbyServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/Items/Counts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		writeJSON(w, map[string]interface{}{"MovieCount": 4, "SeriesCount": 2})
	})
	mux.HandleFunc("/Sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []interface{}{map[string]interface{}{"Id": "a", "NowPlayingItem": map[string]interface{}{"Name": "x"}}})
	})
	mux.HandleFunc("/Items", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported", http.StatusInternalServerError)
	})
	mux.HandleFunc("/ScheduledTasks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []interface{}{
			map[string]interface{}{"Id": "scan", "Name": "Scan media library", "State": "Idle", "Category": "Library"},
		})
	})
	mux.HandleFunc("/ScheduledTasks/Running/scan", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProviderRoutes(t *testing.T) {
	srv := newEmbyServer(t)
	e := newEnv(t, srv.URL)
	cookie := e.login()

	var es stats.EmbyStats
	rec := e.do(http.MethodGet, "/api/v1/emby/cards/emby/stats", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &es)
	assert.Equal(t, int64(6), es.MediaTotal)
	assert.Equal(t, 1, es.PlayingSessions)

	rec = e.do(http.MethodGet, "/api/v1/qbittorrent/cards/emby/stats", nil, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Card is not a qbittorrent card: emby", decode(t, rec, nil).Message)

	rec = e.do(http.MethodGet, "/api/v1/plex/cards/emby/stats", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var tasks []stats.EmbyTask
	decode(t, e.do(http.MethodGet, "/api/v1/emby/cards/emby/tasks", nil, withCookie(cookie)), &tasks)
	require.Len(t, tasks, 1)
	assert.Equal(t, "scan", tasks[0].ID)

	var run stats.EmbyTaskRunResult
	rec = e.do(http.MethodPost, "/api/v1/emby/cards/emby/tasks/scan/run", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &run)

	rec = e.do(http.MethodPost, "/api/v1/emby/cards/emby/tasks/nope/run", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found: nope", decode(t, rec, nil).Message)
}

func TestHealthSnapshot(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	cookie := e.login()
	cards, err := e.store.ListCards(context.Background(), storage.CardFilter{})
	require.NoError(t, err)
	e.health.ProbeCards(context.Background(), cards)

	var out struct {
		Cards     []probe.Health `json:"cards"`
		UpdatedAt int64          `json:"updatedAt"`
	}
	decode(t, e.do(http.MethodGet, "/v1/health", nil, withCookie(cookie)), &out)
	assert.NotEmpty(t, out.Cards)
	assert.Positive(t, out.UpdatedAt)
}

func TestMetricsAndFallbacks(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	e.do(http.MethodGet, "/healthz", nil)

	rec := e.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nexusnav_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/healthz"`)

	rec = e.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":404,"message":"Not Found","data":null}`, rec.Body.String())

	rec = e.do(http.MethodDelete, "/healthz", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t, "http://emby.lan")
	rec := e.do(http.MethodOptions, "/api/v1/groups", nil,
		withHeader("Origin", "http://nav.lan"),
		withHeader("Access-Control-Request-Method", "POST"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://nav.lan", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST"))
}
