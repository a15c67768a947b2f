package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// collectionParams maps a collection segment to the placeholder used for the segment
// that follows it.
var collectionParams = map[string]string{
	"events":   "{id}",
	"photos":   "{id}",
	"comments": "{id}",
	"e":        "{slug}",
}

// staticSegments are literal path segments that may follow a collection segment.
var staticSegments = map[string]bool{
	"approve": true,
	"reject":  true,
}

// normalizePath maps concrete paths to route patterns so metric labels stay bounded,
// e.g. /api/e/yaz-partisi-x1y2z3/feed becomes /api/e/{slug}/feed. Only the segment
// following a top-level collection (/api/<collection>/<param>) is a parameter.
func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "api" && parts[2] != "" && !staticSegments[parts[2]] {
		if placeholder, ok := collectionParams[parts[1]]; ok {
			parts[2] = placeholder
		}
	}
	return "/" + strings.Join(parts, "/")
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	mrw.wroteHeader = true
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics records request duration, response size and counts.
// Probe and scrape endpoints are excluded, as are websocket upgrades which
// would otherwise report connection lifetime as latency.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/ready", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			metrics.httpInFlight.Inc()
			defer metrics.httpInFlight.Dec()

			mrw := newMetricsResponseWriter(w)
			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				mrw.size,
			)
		})
	}
}
