package httputil

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/subledger/internal/pkg/metrics"
	"github.com/go-chi/chi/v5/middleware"
)

// MetricsMiddleware records request latency per route pattern and counts
// error responses. Patterns, not raw paths, keep label cardinality bounded
// despite per-key URLs.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		code := strconv.Itoa(status)

		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, code).
			Observe(time.Since(start).Seconds())
		if status >= http.StatusBadRequest {
			metrics.HTTPErrors.WithLabelValues(route, code).Inc()
		}
	})
}
