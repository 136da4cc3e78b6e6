package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/imageproxy-service/internal/extractor"
	"github.com/user/imageproxy-service/internal/fetcher"
	"github.com/user/imageproxy-service/internal/imagediff"
	"github.com/user/imageproxy-service/internal/proxyerr"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"name":    ServiceName,
		"version": ServiceVersion,
		"status":  "ok",
		"endpoints": []string{
			"/proxy", "/fetch-metadata", "/proxy-image", "/diff", "/search-image",
		},
	})
}

// handleHealth is deliberately side-effect-free and cheap: callers poll it
// from circuit breakers and must never pay for an upstream round trip.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncRequests("proxy")

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.respondWithError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	res, err := s.fetcher.FetchExternal(r.Context(), rawURL)
	if err != nil {
		s.respondWithProxyError(w, err)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.config.BrowserCacheMaxAge))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

func (s *Server) handleFetchMetadata(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncRequests("fetch-metadata")

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.respondWithError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	if images, ok := s.cache.Get(r.Context(), rawURL); ok {
		s.metrics.CacheHits.Inc()
		s.respondWithJSON(w, http.StatusOK, map[string]any{"images": images})
		return
	}

	res, err := s.fetcher.FetchExternal(r.Context(), rawURL)
	if err != nil {
		s.respondWithProxyError(w, err)
		return
	}

	images := extractor.ExtractImages(string(res.Body), rawURL, s.config.MaxImages)
	s.cache.Set(r.Context(), rawURL, images, s.config.CacheTTL())
	s.respondWithJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (s *Server) handleProxyImage(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncRequests("proxy-image")

	q := r.URL.Query()
	rawURL := q.Get("url")
	if rawURL == "" {
		s.respondWithError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	ov := fetcher.Overrides{
		UserAgent: q.Get("ua"),
		Referer:   q.Get("referer"),
		Accept:    q.Get("accept"),
	}

	res, err := s.fetcher.FetchImage(r.Context(), rawURL, ov)
	if err != nil {
		s.respondWithProxyError(w, err)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.config.BrowserCacheMaxAge))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncRequests("diff")

	q := r.URL.Query()
	urlA, urlB := q.Get("imageA"), q.Get("imageB")
	if urlA == "" || urlB == "" {
		s.respondWithError(w, http.StatusBadRequest, "imageA and imageB query parameters are required")
		return
	}

	// Both images are fetched concurrently; the diff needs them jointly.
	var resA, resB *fetcher.Resource
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		resA, err = s.fetcher.FetchImage(ctx, urlA, fetcher.Overrides{})
		return err
	})
	g.Go(func() (err error) {
		resB, err = s.fetcher.FetchImage(ctx, urlB, fetcher.Overrides{})
		return err
	})
	if err := g.Wait(); err != nil {
		if proxyerr.KindOf(err) == proxyerr.KindForbiddenTarget {
			s.respondWithProxyError(w, err)
			return
		}
		s.respondWithProxyError(w, proxyerr.Wrap(proxyerr.KindUpstreamFetch, err, "image fetch failed"))
		return
	}

	result, err := imagediff.Diff(resA.Body, resB.Body, s.config.DiffThreshold)
	if err != nil {
		s.respondWithProxyError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"diffScore":     result.Score,
		"phashDistance": result.PHashDistance,
		"diffImage":     dataURI("image/png", result.Artifact),
		"imageA":        dataURI(resA.ContentType, resA.Body),
		"imageB":        dataURI(resB.ContentType, resB.Body),
	})
}

// handleSearchImage is a stub: reverse image search needs an external
// search API key that this deployment does not configure.
func (s *Server) handleSearchImage(w http.ResponseWriter, _ *http.Request) {
	s.metrics.IncRequests("search-image")
	s.respondWithError(w, http.StatusNotImplemented, "search-image is not configured")
}

// --- Helper Functions ---

// respondWithProxyError is the single point translating component errors
// into HTTP statuses. Nothing escapes un-enveloped.
func (s *Server) respondWithProxyError(w http.ResponseWriter, err error) {
	kind := proxyerr.KindOf(err)
	s.metrics.IncErrors(string(kind))

	status := http.StatusInternalServerError
	switch kind {
	case proxyerr.KindInvalidRequest:
		status = http.StatusBadRequest
	case proxyerr.KindForbiddenTarget:
		status = http.StatusForbidden
	case proxyerr.KindBadUpstream, proxyerr.KindTooManyRedirects,
		proxyerr.KindRetriesExhausted, proxyerr.KindInvalidPayload,
		proxyerr.KindUpstreamFetch:
		status = http.StatusBadGateway
	}

	s.logger.Warn("request failed",
		zap.String("kind", string(kind)),
		zap.Int("status", status),
		zap.Error(err))

	payload := map[string]any{"error": err.Error(), "kind": string(kind)}
	var pe *proxyerr.Error
	if errors.As(err, &pe) && pe.UpstreamStatus != 0 {
		payload["upstreamStatus"] = pe.UpstreamStatus
	}
	s.respondWithJSON(w, status, payload)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func dataURI(contentType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
}
