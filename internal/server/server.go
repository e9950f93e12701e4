// Package server assembles the components behind `nexusnav serve`: the
// database, the config file manager, auth, the stats client, the health
// prober, the SSH relay and the HTTP router.
package server

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nexusnav/nexusnav/internal/api"
	"github.com/nexusnav/nexusnav/internal/auth"
	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/config"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/navconfig"
	"github.com/nexusnav/nexusnav/internal/probe"
	"github.com/nexusnav/nexusnav/internal/relay"
	"github.com/nexusnav/nexusnav/internal/stats"
	"github.com/nexusnav/nexusnav/internal/stats/emby"
	"github.com/nexusnav/nexusnav/internal/stats/qbittorrent"
	"github.com/nexusnav/nexusnav/internal/stats/transmission"
	"github.com/nexusnav/nexusnav/internal/storage"
	"github.com/nexusnav/nexusnav/pkg/sshutil"
)

// Server holds every long-lived component. Build it step by step with
// OpenStorage, ImportConfig and Wire, then call Run.
type Server struct {
	cfg *config.Config
	log logger.Logger

	Store     *storage.Store
	Nav       *navconfig.Manager
	Auth      *auth.Service
	Stats     *stats.Client
	Engine    *probe.Engine
	Scheduler *probe.Scheduler
	Registry  *prometheus.Registry
	Handler   http.Handler

	// Dialer opens the relay's SSH shells. Replaced in tests.
	Dialer sshutil.Dialer

	statsLoads *prometheus.CounterVec
}

// New returns an unopened server for cfg.
func New(cfg *config.Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.Noop()
	}
	return &Server{
		cfg: cfg,
		log: log,
		Dialer: &sshutil.SSHDialer{
			Timeout:        cfg.SSH.DialTimeout,
			ConfigPath:     cfg.SSH.ConfigPath,
			KnownHostsPath: cfg.SSH.KnownHostsPath,
		},
	}
}

// OpenStorage opens and migrates the database.
func (s *Server) OpenStorage(ctx context.Context) error {
	st, err := storage.Open(ctx, storage.Options{
		Path:     s.cfg.Storage.Path,
		RetryFor: s.cfg.Storage.RetryFor,
		Logger:   logger.With(s.log, "storage"),
	})
	if err != nil {
		return err
	}
	s.Store = st
	return nil
}

// ImportConfig loads the nav and system files into the database.
func (s *Server) ImportConfig(ctx context.Context) (navconfig.ImportResult, error) {
	if s.Store == nil {
		return navconfig.ImportResult{}, errors.New(errors.ErrServer, "Storage is not open", "")
	}
	mgr, err := navconfig.New(s.Store, navconfig.Options{
		NavPath:       s.cfg.Nav.NavPath,
		SystemPath:    s.cfg.Nav.SystemPath,
		AdminPassword: s.cfg.Nav.AdminPassword,
		Logger:        logger.With(s.log, "navconfig"),
	})
	if err != nil {
		return navconfig.ImportResult{}, err
	}
	res, err := mgr.Import(ctx, s.cfg.Nav.PruneOnStart)
	if err != nil {
		return res, err
	}
	s.Nav = mgr
	return res, nil
}

// Wire builds auth, stats, the prober, the relay and the router.
func (s *Server) Wire() error {
	if s.Store == nil || s.Nav == nil {
		return errors.New(errors.ErrServer, "Storage and config must be loaded before wiring", "")
	}

	s.Registry = prometheus.NewRegistry()
	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var authOpts []auth.Option
	authOpts = append(authOpts, auth.WithLogger(logger.With(s.log, "auth")))
	if s.cfg.Auth.TokenSecret != "" {
		authOpts = append(authOpts, auth.WithSecret([]byte(s.cfg.Auth.TokenSecret)))
	}
	svc, err := auth.New(s.Nav, authOpts...)
	if err != nil {
		return err
	}
	s.Auth = svc

	s.statsLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexusnav",
		Subsystem: "stats",
		Name:      "loads_total",
		Help:      "Provider stats loads, by provider, stage and result.",
	}, []string{"provider", "source", "result"})
	s.Registry.MustRegister(s.statsLoads)

	s.Stats = stats.NewClient([]stats.Provider{
		emby.New(nil),
		qbittorrent.New(nil),
		transmission.New(nil),
	},
		stats.WithTimeout(s.cfg.Stats.Timeout),
		stats.WithLogger(logger.With(s.log, "stats")),
		stats.WithObserver(s.observeStats),
	)

	s.Engine = probe.NewEngine(probe.NewHTTPProber(s.cfg.Probe.Timeout),
		probe.WithThreshold(s.cfg.Probe.Threshold),
		probe.WithLogger(logger.With(s.log, "probe")),
		probe.WithObserver(probe.NewMetrics(s.Registry)),
	)
	sched, err := probe.NewScheduler(s.Engine, s.probeSource, s.cfg.Probe.Schedule, logger.With(s.log, "probe"))
	if err != nil {
		return err
	}
	s.Scheduler = sched

	relayHandler := relay.NewHandler(s.Store, s.Dialer,
		relay.WithLogger(logger.With(s.log, "relay")),
		relay.WithMetrics(relay.NewMetrics(s.Registry)),
		relay.WithCheckOrigin(OriginChecker(s.cfg.Server.AllowedOrigins)),
	)

	s.Handler = api.NewRouter(api.Services{
		Store:  s.Store,
		Config: s.Nav,
		Auth:   s.Auth,
		Stats:  s.Stats,
		Health: s.Engine,
		Relay:  relayHandler,
	}, api.Options{
		Logger:         logger.With(s.log, "http"),
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		Registry:       s.Registry,
	})
	return nil
}

// probeSource feeds the scheduler every enabled card.
func (s *Server) probeSource(ctx context.Context) ([]card.Card, error) {
	enabled := true
	return s.Store.ListCards(ctx, storage.CardFilter{Enabled: &enabled})
}

func (s *Server) observeStats(kind card.Type, src stats.Source, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.statsLoads.WithLabelValues(string(kind), string(src), result).Inc()
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrServer,
			"Cannot listen on "+s.cfg.Server.Addr,
			"Pick another address with server.addr or stop the process using it.")
	}
	return ln, nil
}

// Run starts the prober and serves HTTP on ln until ctx is done, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	if s.Handler == nil {
		return errors.New(errors.ErrServer, "Server is not wired", "")
	}

	srv := &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Scheduler.Start()
	defer s.Scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrServer, "HTTP server failed", "")
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapWithCode(err, errors.ErrServer, "Graceful shutdown timed out", "")
	}
	return nil
}

// Close releases the database.
func (s *Server) Close() error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

// OriginChecker accepts requests without an Origin header, same-host origins
// and the configured ones. "*" accepts everything.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[strings.ToLower(o)] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[strings.ToLower(strings.TrimRight(origin, "/"))] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
