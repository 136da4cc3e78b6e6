package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	// CORS is outermost: every response this service emits, including
	// 404s, 405s and recovered panics, must carry the allow-origin
	// header. A CORS-less error is indistinguishable in a browser from
	// the service not existing. cors.Handler only acts when the request
	// carries an Origin header, so the wildcard is set unconditionally
	// first.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().(http.HandlerFunc))

	r.Get("/proxy", s.handleProxy)
	r.Get("/fetch-metadata", s.handleFetchMetadata)
	r.Get("/proxy-image", s.handleProxyImage)
	r.Get("/diff", s.handleDiff)
	r.Get("/search-image", s.handleSearchImage)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.respondWithError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// recoverer replaces chi's middleware.Recoverer so that a panic still
// produces the service's JSON envelope instead of a bare 500.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil && rec != http.ErrAbortHandler {
				s.logger.Error("panic in handler",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path))
				s.respondWithError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
