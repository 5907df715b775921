package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/obsidian-tools/plugin-manager/internal/metrics"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/patrickmn/go-cache"
)

type cacheKey string

const cacheKeyPrefixRequest = "request"

func (s *Server) getCacheKeyFromRequest(r *http.Request) cacheKey {
	return cacheKey(fmt.Sprintf("%s/%s:%s", cacheKeyPrefixRequest, r.Method, r.URL.EscapedPath()))
}

func (s *Server) getCacheKeyPrefixFromKind(kind registry.Kind) cacheKey {
	return cacheKey(fmt.Sprintf("%s/%s:/api/v1/%ss", cacheKeyPrefixRequest, http.MethodGet, kind))
}

func (s *Server) getFromCache(ctx context.Context, k cacheKey) (any, bool) {
	val, ok := s.cache.Get(string(k))
	if ok {
		metrics.RecordCacheHit(ctx, metrics.CacheRequest)
	}
	return val, ok
}

func (s *Server) setInCache(ctx context.Context, k cacheKey, v any, expiration ...time.Duration) {
	if s.config.DisableRequestCache {
		return
	}
	metrics.RecordCacheMiss(ctx, metrics.CacheRequest)
	exp := cache.DefaultExpiration
	if len(expiration) > 0 {
		exp = expiration[0]
	}
	s.cache.Set(string(k), v, exp)
}

func (s *Server) invalidateByPrefix(prefix cacheKey) {
	for k := range s.cache.Items() {
		if strings.HasPrefix(k, string(prefix)) {
			s.cache.Delete(k)
		}
	}
}

func (s *Server) cacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.DisableRequestCache {
			next.ServeHTTP(w, r)
			return
		}
		if k, ok := s.getFromCache(r.Context(), s.getCacheKeyFromRequest(r)); ok {
			w.Header().Set("X-Go-Cache", "HIT")
			s.writeJSON(w, k)
			return
		}
		next.ServeHTTP(w, r)
	})
}
