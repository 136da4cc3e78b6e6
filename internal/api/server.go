package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/imageproxy-service/internal/config"
	"github.com/user/imageproxy-service/internal/fetcher"
	"github.com/user/imageproxy-service/internal/monitoring"
	"github.com/user/imageproxy-service/internal/storage"
)

// ServiceName and ServiceVersion identify this deployment in the root
// endpoint payload.
const (
	ServiceName    = "imageproxy-service"
	ServiceVersion = "1.0.0"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	fetcher    *fetcher.Fetcher
	cache      *storage.MetadataCache
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, f *fetcher.Fetcher, cache *storage.MetadataCache, m *monitoring.Metrics, l *zap.Logger) *Server {
	s := &Server{
		config:  cfg,
		fetcher: f,
		cache:   cache,
		metrics: m,
		logger:  l,
	}
	s.router = s.setupRouter()
	return s
}

// Handler exposes the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
