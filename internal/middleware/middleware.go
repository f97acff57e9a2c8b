// Package middleware holds the chi middleware shared by the API router.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/observability"
	"github.com/techfala/ia-wizard/backend/internal/service/identity"
	"github.com/techfala/ia-wizard/backend/pkg/logger"
	"github.com/techfala/ia-wizard/backend/pkg/utils"
)

// CORS 基于白名单的跨域中间件。包含 "*" 时回显任意 Origin。
// 访客身份依赖 cookie，因此总是允许携带凭证。
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny := false
	allow := map[string]struct{}{}
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAny = true
			continue
		}
		allow[origin] = struct{}{}
	}

	const (
		allowedHeaders = "Authorization, Content-Type, X-Request-Id"
		allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			_, listed := allow[origin]
			if origin != "" && (allowAny || listed) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger 记录每个请求的结构化日志，并按状态码统计请求数。
func RequestLogger(l *zap.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	l = logger.Or(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if metrics != nil {
				metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
			}
			l.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}

// Identity 从 cookie 解析访客 ID，缺失时生成并写回，再放入请求上下文。
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := identity.Resolve(r.Context(), identity.NewCookieStorage(w, r))
		if err != nil {
			logger.Base().Error("resolve visitor identity", zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "identity unavailable")
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithID(r.Context(), id)))
	})
}
