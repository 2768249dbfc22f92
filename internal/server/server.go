// Package server runs the frontend development server: the built app, the
// optional /api proxy and the fixed network binding.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rathix/todo-devserver/internal/config"
)

// ErrPortInUse is returned by Listen when the configured port is taken and
// the binding does not allow moving to another one.
var ErrPortInUse = errors.New("port is already in use")

// maxPortAttempts bounds the search for a free port when StrictPort is off.
const maxPortAttempts = 10

const defaultShutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// Static is the built frontend. Nil answers 404 for non-API paths.
	Static fs.FS
	Logger *slog.Logger
	// ShutdownTimeout bounds connection draining. Default 10s.
	ShutdownTimeout time.Duration
}

// Server is the development HTTP server. Its configuration can be swapped
// at runtime with Reload; the network binding is fixed at Listen.
type Server struct {
	opts   Options
	logger *slog.Logger
	static http.Handler
	active atomic.Pointer[route]
}

// route is an immutable pairing of a config with the handler built from it.
type route struct {
	cfg     config.ResolvedConfig
	handler http.Handler
	proxy   *APIProxy
}

// New creates a server for cfg.
func New(cfg config.ResolvedConfig, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{opts: opts, logger: opts.Logger}
	s.static = http.NotFoundHandler()
	if opts.Static != nil {
		spa, err := NewSPAHandler(opts.Static, ".")
		if err != nil {
			s.logger.Warn("Static files disabled", "error", err)
		} else {
			s.static = spa
		}
	}

	s.active.Store(s.build(cfg))
	logProxy(s.logger, cfg)
	return s
}

// Config returns the active configuration.
func (s *Server) Config() config.ResolvedConfig {
	return s.active.Load().cfg
}

// Reload replaces the active configuration. In-flight requests finish on
// the previous handler. Binding changes only apply after a restart.
func (s *Server) Reload(cfg config.ResolvedConfig) {
	prev := s.active.Swap(s.build(cfg))
	if prev.proxy != nil {
		prev.proxy.CloseIdleConnections()
	}

	oldRule, hadProxy := prev.cfg.Proxy()
	newRule, hasProxy := cfg.Proxy()
	switch {
	case hadProxy && !hasProxy:
		s.logger.Info("Proxy disabled", "prefix", config.APIPrefix)
	case !hadProxy && hasProxy, hadProxy && hasProxy && oldRule != newRule:
		logProxy(s.logger, cfg)
	}
}

// Handler returns the handler serving the active configuration.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.active.Load().handler.ServeHTTP(w, r)
	})
}

func (s *Server) build(cfg config.ResolvedConfig) *route {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(HostAllowlist(cfg.Server.AllowedHosts))
	r.Use(Headers(cfg.Server))

	r.Handle("/__devserver/metrics", promhttp.Handler())
	r.Get("/__devserver/config", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		if err := config.Render(w, cfg); err != nil {
			s.logger.Warn("Failed to render config", "error", err)
		}
	})

	var api http.Handler = http.NotFoundHandler()
	var proxy *APIProxy
	if rule, ok := cfg.Proxy(); ok {
		proxy = NewAPIProxy(rule, s.logger)
		api = proxy
	}
	r.Handle(config.APIPrefix, api)
	r.Handle(config.APIPrefix+"/*", api)

	r.Handle("/*", s.static)
	return &route{cfg: cfg, handler: r, proxy: proxy}
}

func logProxy(logger *slog.Logger, cfg config.ResolvedConfig) {
	if rule, ok := cfg.Proxy(); ok {
		logger.Info("Proxying API requests", "prefix", config.APIPrefix, "target", rule.Target)
	}
}

// Listen binds the configured host and port. With StrictPort a busy port is
// an error wrapping ErrPortInUse; otherwise the following ports are tried.
func (s *Server) Listen() (net.Listener, error) {
	b := s.Config().Server

	attempts := 1
	if !b.StrictPort && b.Port != 0 {
		attempts = maxPortAttempts
	}

	var lastErr error
	for i := range attempts {
		addr := net.JoinHostPort(b.Host, strconv.Itoa(b.Port+i))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			if i > 0 {
				s.logger.Warn("Port in use, using another one", "requested", b.Port, "port", b.Port+i)
			}
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %d: %w", ErrPortInUse, b.Port, lastErr)
}

// Serve serves on ln until ctx is cancelled, then drains connections.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	serverError := make(chan error, 1)
	go func() {
		s.logger.Info("Listening (HTTP)", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
		close(serverError)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		<-serverError
		s.logger.Info("Server stopped")
		return nil
	case err, ok := <-serverError:
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
