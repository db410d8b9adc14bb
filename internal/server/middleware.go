package server

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey struct{ name string }

var tenantIDKey = &contextKey{"tenant_id"}

// tenantIDPattern matches 2-64 chars starting alphanumeric.
var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{1,63}$`)

func tenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantIDKey).(string)
	return id
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// requireAPIKey checks X-API-Key against the configured key set. With no
// keys configured the API fails closed unless anonymous access is allowed.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys := make(map[string]struct{}, len(s.cfg.Auth.APIKeys))
		for _, k := range s.cfg.Auth.APIKeys {
			if k = strings.TrimSpace(k); k != "" {
				keys[k] = struct{}{}
			}
		}

		if len(keys) == 0 {
			if s.cfg.Auth.AllowAnonymous {
				next.ServeHTTP(w, r)
				return
			}
			s.writeError(w, http.StatusServiceUnavailable, "auth_not_configured", "Server auth is not configured")
			return
		}

		if _, ok := keys[r.Header.Get("X-API-Key")]; !ok {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireTenant validates X-Tenant-Id and stashes it in the request context.
func (s *Server) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
		if tenant == "" {
			s.writeError(w, http.StatusBadRequest, "tenant_missing", "X-Tenant-Id header is required")
			return
		}
		if !tenantIDPattern.MatchString(tenant) {
			s.writeError(w, http.StatusBadRequest, "tenant_invalid", "Invalid tenant id format")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantIDKey, tenant)))
	})
}
