// Package api serves the REST API, the SSH relay websocket, the health
// snapshot and the prometheus metrics of `nexusnav serve`.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexusnav/nexusnav/internal/auth"
	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/navconfig"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/stats"
	"github.com/nexusnav/nexusnav/internal/storage"
)

// Services are the components the router dispatches to.
type Services struct {
	Store  *storage.Store
	Config *navconfig.Manager
	Auth   *auth.Service
	Stats  *stats.Client

	// Health is optional; without it /v1/health reports no cards.
	Health *probe.Engine

	// Relay serves /ws/ssh when set.
	Relay http.Handler
}

// Options tune the router.
type Options struct {
	Logger         logger.Logger
	AllowedOrigins []string
	BodyLimit      int64

	// Registry receives the HTTP metrics and is served at /metrics when set.
	Registry *prometheus.Registry
}

type server struct {
	store *storage.Store
	nav   *navconfig.Manager
	auth  *auth.Service
	stats *stats.Client
	probe *probe.Engine
	log   logger.Logger
	now   func() time.Time
}

// NewRouter wires every endpoint.
func NewRouter(svc Services, opts Options) http.Handler {
	if svc.Store == nil {
		panic("router requires Store")
	}
	if svc.Config == nil {
		panic("router requires Config")
	}
	if svc.Auth == nil {
		panic("router requires Auth")
	}
	if svc.Stats == nil {
		panic("router requires Stats")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}

	s := &server{
		store: svc.Store,
		nav:   svc.Config,
		auth:  svc.Auth,
		stats: svc.Stats,
		probe: svc.Health,
		log:   opts.Logger,
		now:   time.Now,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	if opts.Registry != nil {
		r.Use(newHTTPMetrics(opts.Registry).middleware)
	}
	r.Use(
		requestLogger(opts.Logger),
		chiMiddleware.Recoverer,
		cors(opts.AllowedOrigins),
		chiMiddleware.RequestSize(opts.BodyLimit),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondOK(w, s.log, map[string]string{"status": "ok", "ts": s.now().UTC().Format(time.RFC3339Nano)})
	})
	if opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/v1/health", s.health)
		if svc.Relay != nil {
			r.Handle("/ws/ssh", svc.Relay)
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/auth/session", s.session)
		r.Post("/auth/login", s.login)
		r.Post("/auth/logout", s.logout)
		r.Post("/auth/verify-config", s.verifyConfig)
		r.Get("/system/config", s.systemConfig)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/system/admin-config", s.adminConfig)

			r.Get("/groups", s.listGroups)
			r.Post("/groups", s.createGroup)
			r.Post("/groups/{groupId}/update", s.updateGroup)
			r.Post("/groups/{groupId}/delete", s.deleteGroup)

			r.Get("/cards", s.listCards)
			r.Post("/cards", s.createCard)
			r.Post("/cards/order", s.updateOrder)
			r.Get("/cards/{cardId}", s.getCard)
			r.Post("/cards/{cardId}/update", s.updateCard)
			r.Post("/cards/{cardId}/delete", s.deleteCard)

			r.Get("/{kind:emby|qbittorrent|transmission}/cards/{cardId}/stats", s.providerStats)
			r.Get("/emby/cards/{cardId}/tasks", s.embyTasks)
			r.Post("/emby/cards/{cardId}/tasks/{taskId}/run", s.runEmbyTask)

			r.Get("/config/export-nav", s.exportNav)

			r.Group(func(r chi.Router) {
				r.Use(s.requireVerify)
				r.Post("/system/admin-config", s.updateAdminConfig)
				r.Post("/config/reload", s.reload)
				r.Post("/config/import-nav", s.importNav)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.log.Debug("unmapped route hit: %s %s", req.Method, req.URL.Path)
		respondStatus(w, s.log, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondStatus(w, s.log, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}

// clientIP is the first X-Forwarded-For hop, else the peer address.
func clientIP(r *http.Request) string {
	return card.ClientIP(r.Header.Get("X-Forwarded-For"), r.RemoteAddr)
}

// networkMode resolves the system preference for the caller.
func (s *server) networkMode(r *http.Request) (card.NetworkMode, error) {
	sys, err := s.nav.System(r.Context())
	if err != nil {
		return "", err
	}
	return card.ResolveNetworkMode(sys.NetworkModePreference, clientIP(r)), nil
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	cards := []probe.Health{}
	if s.probe != nil {
		cards = s.probe.Snapshot()
	}
	respondOK(w, s.log, map[string]interface{}{
		"cards":     cards,
		"updatedAt": s.now().UnixMilli(),
	})
}
