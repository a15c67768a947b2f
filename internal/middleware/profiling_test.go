package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProfiling(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		enabled    bool
		env        string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "disabled", enabled: false, env: "development", path: "/debug/pprof/", wantStatus: http.StatusTeapot},
		{name: "production refuses", enabled: true, env: "production", path: "/debug/pprof/", wantStatus: http.StatusTeapot},
		{name: "index in development", enabled: true, env: "development", path: "/debug/pprof/", wantStatus: http.StatusOK, wantBody: "goroutine"},
		{name: "heap profile", enabled: true, env: "development", path: "/debug/pprof/heap?debug=1", wantStatus: http.StatusOK, wantBody: "heap profile"},
		{name: "other routes pass through", enabled: true, env: "development", path: "/api/e/dugun/feed", wantStatus: http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Profiling(tt.enabled, tt.env)(next)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
		})
	}
}
