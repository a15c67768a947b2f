package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingPrefix is the path prefix of the pprof endpoints.
const ProfilingPrefix = "/debug/pprof"

// Profiling mounts the pprof endpoints in front of next when enabled. It refuses to do
// so in production, where heap profiles would leak guest tokens and uploaded content.
func Profiling(enabled bool, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		if env == "production" || env == "prod" {
			slog.Error("profiling cannot be enabled in production", "environment", env)
			return next
		}
		slog.Warn("profiling endpoints enabled", "environment", env, "endpoints", ProfilingPrefix+"/*")

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, ProfilingPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			switch r.URL.Path {
			case ProfilingPrefix + "/cmdline":
				pprof.Cmdline(w, r)
			case ProfilingPrefix + "/profile":
				pprof.Profile(w, r)
			case ProfilingPrefix + "/symbol":
				pprof.Symbol(w, r)
			case ProfilingPrefix + "/trace":
				pprof.Trace(w, r)
			default:
				pprof.Index(w, r)
			}
		})
	}
}
