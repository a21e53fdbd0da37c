// Package diagnostics serves a small HTTP API for inspecting the cache facade:
// configured groups, the last ping error, pool statistics and Prometheus metrics.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	rcerrors "github.com/DeBrosOfficial/rediscache/pkg/errors"
	"github.com/DeBrosOfficial/rediscache/pkg/logging"
	"github.com/DeBrosOfficial/rediscache/pkg/pool"
	"github.com/DeBrosOfficial/rediscache/pkg/rediscache"
)

const maxBodyBytes = 1 << 16

// StatsSource reports pool statistics. *pool.Manager implements it.
type StatsSource interface {
	Stats() pool.Stats
}

// Server is the diagnostics HTTP server.
type Server struct {
	logger   *logging.ColoredLogger
	cfg      config.DiagnosticsConfig
	servers  config.ServerGroups
	cache    *rediscache.Cache
	stats    StatsSource
	gatherer prometheus.Gatherer

	router chi.Router
	server *http.Server
}

// GroupInfo describes one configured group. Passwords are never exposed.
type GroupInfo struct {
	Name       string            `json:"name"`
	Addr       string            `json:"addr"`
	Driver     config.Driver     `json:"driver"`
	Serializer config.Serializer `json:"serializer"`
	Persistent bool              `json:"persistent"`
	Prefix     string            `json:"prefix,omitempty"`
	Cached     bool              `json:"cached"`
}

// Status is the body of GET /v1/cache/status.
type Status struct {
	Groups    []string   `json:"groups"`
	Cached    []string   `json:"cached"`
	LastError string     `json:"last_error"`
	Pool      pool.Stats `json:"pool"`
}

// ConnectRequest is the body of POST /v1/cache/connect.
type ConnectRequest struct {
	Group string `json:"group"`
	New   bool   `json:"new"`
}

// ConnectResponse is returned when a connection was acquired.
type ConnectResponse struct {
	Status    string `json:"status"`
	Group     string `json:"group"`
	LastError string `json:"last_error"`
}

// New builds the server and its routes. stats and gatherer may be nil.
func New(logger *logging.ColoredLogger, cfg config.DiagnosticsConfig, servers config.ServerGroups, cache *rediscache.Cache, stats StatsSource, gatherer prometheus.Gatherer) (*Server, error) {
	if cache == nil {
		return nil, fmt.Errorf("diagnostics: nil cache")
	}
	if logger == nil {
		var err error
		logger, err = logging.NewColoredLogger(logging.ComponentDiagnostics, true)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	s := &Server{
		logger:   logger,
		cfg:      cfg,
		servers:  servers,
		cache:    cache,
		stats:    stats,
		gatherer: gatherer,
		router:   chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	s.router.Route("/v1/cache", func(r chi.Router) {
		r.Get("/groups", s.handleGroups)
		r.Get("/groups/{name}", s.handleGroup)
		r.Get("/status", s.handleStatus)
		r.Post("/connect", s.handleConnect)
	})

	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func (s *Server) groupInfo(name string, server config.ServerGroupConfig) GroupInfo {
	opts := server.Options
	return GroupInfo{
		Name:       name,
		Addr:       server.Address(),
		Driver:     opts.DriverOrDefault(),
		Serializer: opts.SerializerOrDefault(),
		Persistent: opts.Persistent,
		Prefix:     opts.Prefix,
		Cached:     s.cache.Cached(name),
	}
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups := make([]GroupInfo, 0, len(s.servers))
	for _, g := range s.servers {
		groups = append(groups, s.groupInfo(g.Name, g.Server))
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	server, ok := s.servers.Lookup(name)
	if !ok {
		writeError(w, r, rcerrors.NewNotFoundError("redis server group", name))
		return
	}
	writeJSON(w, http.StatusOK, s.groupInfo(name, server))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Groups:    s.cache.Groups(),
		Cached:    []string{},
		LastError: s.cache.LastError(),
	}
	if status.Groups == nil {
		status.Groups = []string{}
	}
	for _, name := range status.Groups {
		if s.cache.Cached(name) {
			status.Cached = append(status.Cached, name)
		}
	}
	if s.stats != nil {
		status.Pool = s.stats.Stats()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	// An empty body selects the default group.
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, rcerrors.NewBaseError(rcerrors.CodeInvalidArgument, "invalid request body", err))
		return
	}

	if _, err := s.cache.GetConnection(r.Context(), req.Group, req.New); err != nil {
		retry := rcerrors.ShouldRetry(err)
		fields := []zap.Field{
			zap.String("group", req.Group),
			zap.Bool("new", req.New),
			zap.String("code", rcerrors.GetErrorCode(err)),
			zap.String("message", rcerrors.GetErrorMessage(err)),
			zap.NamedError("cause", rcerrors.Cause(err)),
			zap.Bool("retryable", retry),
		}
		var traced interface{ StackTrace() string }
		if rediscache.IsFatal(err) && errors.As(err, &traced) {
			fields = append(fields, zap.String("stack", traced.StackTrace()))
		}
		s.logger.ComponentWarn(logging.ComponentDiagnostics, "Connect request failed", fields...)
		if retry {
			w.Header().Set("Retry-After", "1")
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ConnectResponse{
		Status:    "ok",
		Group:     req.Group,
		LastError: s.cache.LastError(),
	})
}

// Handler returns the router, for tests or for mounting in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on cfg.ListenAddr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	go s.Serve(ln)

	<-ctx.Done()
	return s.Stop(context.Background())
}

// Listen binds cfg.ListenAddr.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return ln, nil
}

// Serve serves on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) {
	s.logger.ComponentInfo(logging.ComponentDiagnostics, "Diagnostics server starting",
		zap.String("listen_addr", ln.Addr().String()),
	)

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.ComponentError(logging.ComponentDiagnostics, "Diagnostics server error", zap.Error(err))
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.logger.ComponentInfo(logging.ComponentDiagnostics, "Diagnostics server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.ComponentError(logging.ComponentDiagnostics, "Diagnostics shutdown error", zap.Error(err))
		return err
	}
	return nil
}
