package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/ethpandaops/llmsentinel/pkg/store"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the dashboard HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.DashboardConfig
	store      store.Store
	cache      *tableCache
	users      map[string][]byte
	handler    http.Handler
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a read-only dashboard over a started store.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.DashboardConfig,
	st store.Store,
) Server {
	return &server{
		log:   log.WithField("component", "dashboard"),
		cfg:   cfg,
		store: st,
	}
}

// init prepares credentials, the table cache and the router.
func (s *server) init() error {
	ttl, err := config.ParseDuration(s.cfg.CacheTTL, 0)
	if err != nil {
		return fmt.Errorf("parsing cache ttl: %w", err)
	}

	s.cache = newTableCache(s.store, ttl)

	if s.cfg.Auth.Basic.Enabled {
		users, err := hashUsers(s.cfg.Auth.Basic.Users)
		if err != nil {
			return fmt.Errorf("hashing dashboard users: %w", err)
		}

		s.users = users
	}

	s.handler = s.buildRouter()

	return nil
}

// Start binds the listener and serves the dashboard in the background.
func (s *server) Start(ctx context.Context) error {
	if err := s.init(); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", ln.Addr().String()).
			Info("Dashboard server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	s.log.Info("Dashboard server stopped")

	return nil
}
