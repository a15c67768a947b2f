package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yusufkarademir/etkinlikqr/internal/audit"
	"github.com/yusufkarademir/etkinlikqr/internal/idempotency"
	"github.com/yusufkarademir/etkinlikqr/internal/middleware"
)

// RouterConfig holds everything NewRouter wires together. Handler groups left nil
// are not mounted.
type RouterConfig struct {
	Auth       *AuthHandlers
	Events     *EventHandlers
	Moderation *ModerationHandlers
	Guest      *GuestHandlers
	Feed       *FeedHandlers
	Health     *HealthHandlers

	Tokens         middleware.TokenValidator
	RateLimits     middleware.RateLimitStore
	Idempotency    idempotency.Repository
	Metrics        *middleware.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	ServiceName    string
	Logger         *slog.Logger
	// Profiling mounts /debug/pprof outside production.
	Profiling bool
	Env       string
}

type chain []func(http.Handler) http.Handler

func (c chain) then(h http.HandlerFunc) http.Handler {
	var out http.Handler = h
	for i := len(c) - 1; i >= 0; i-- {
		out = c[i](out)
	}
	return out
}

// NewRouter builds the API handler: routes on a ServeMux behind the shared
// middleware stack.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RateLimits == nil {
		cfg.RateLimits = middleware.NewInMemoryRateLimitStore()
	}
	if cfg.Idempotency == nil {
		cfg.Idempotency = idempotency.NewInMemoryRepository()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "etkinlikqr-api"
	}

	limit := func(c middleware.RateLimitConfig, key middleware.KeyFunc, endpoint string) func(http.Handler) http.Handler {
		return middleware.RateLimiter(cfg.RateLimits, c, key, endpoint, cfg.Metrics)
	}
	authLimited := chain{limit(middleware.DefaultAuthLimit(), middleware.IPKeyFunc(), "auth")}
	organizer := chain{middleware.RequireAuth(cfg.Tokens), audit.CaptureClient}
	organizerUpload := chain{
		middleware.RequireAuth(cfg.Tokens),
		audit.CaptureClient,
		limit(middleware.DefaultUploadLimit(), middleware.GuestKeyFunc(), "cover_upload"),
	}
	public := chain{}
	guestUpload := chain{
		limit(middleware.DefaultUploadLimit(), middleware.GuestKeyFunc(), "photo_upload"),
		middleware.Idempotency(cfg.Idempotency),
	}
	guestWrite := chain{
		limit(middleware.DefaultGuestWriteLimit(), middleware.GuestKeyFunc(), "guest_write"),
		middleware.Idempotency(cfg.Idempotency),
	}

	mux := http.NewServeMux()

	if h := cfg.Health; h != nil {
		mux.HandleFunc("GET /health", h.Health)
		mux.HandleFunc("GET /ready", h.Ready)
	}
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	if h := cfg.Auth; h != nil {
		mux.Handle("POST /api/auth/register", authLimited.then(h.Register))
		mux.Handle("POST /api/auth/login", authLimited.then(h.Login))
	}

	if h := cfg.Events; h != nil {
		mux.Handle("POST /api/events", organizer.then(h.CreateEvent))
		mux.Handle("GET /api/events", organizer.then(h.ListEvents))
		mux.Handle("GET /api/events/{id}", organizer.then(h.GetEvent))
		mux.Handle("PATCH /api/events/{id}", organizer.then(h.UpdateEvent))
		mux.Handle("DELETE /api/events/{id}", organizer.then(h.DeleteEvent))
		mux.Handle("PATCH /api/events/{id}/settings", organizer.then(h.UpdateSettings))
		mux.Handle("POST /api/events/{id}/panic", organizer.then(h.SetPanic))
		mux.Handle("GET /api/events/{id}/moderation", organizer.then(h.ModerationQueue))
		mux.Handle("POST /api/events/{id}/missions", organizer.then(h.CreateMission))
		mux.Handle("GET /api/events/{id}/missions", organizer.then(h.ListMissions))
		mux.Handle("POST /api/events/{id}/cover", organizerUpload.then(h.UploadCover))
		mux.Handle("GET /api/events/{id}/audit", organizer.then(h.ExportAudit))
	}

	if h := cfg.Moderation; h != nil {
		mux.Handle("POST /api/photos/approve", organizer.then(h.ApprovePhotos))
		mux.Handle("POST /api/photos/reject", organizer.then(h.RejectPhotos))
		mux.Handle("POST /api/comments/approve", organizer.then(h.ApproveComments))
		mux.Handle("POST /api/comments/reject", organizer.then(h.RejectComments))
	}

	if h := cfg.Guest; h != nil {
		mux.Handle("GET /api/e/{slug}", public.then(h.GetEvent))
		mux.Handle("GET /api/e/{slug}/qr.png", public.then(h.QRCode))
		mux.Handle("GET /api/e/{slug}/photos", public.then(h.Gallery))
		mux.Handle("POST /api/e/{slug}/photos", guestUpload.then(h.UploadPhoto))
		mux.Handle("POST /api/e/{slug}/photos/presign", guestUpload.then(h.PresignUpload))
		mux.Handle("POST /api/e/{slug}/photos/complete", guestUpload.then(h.CompleteUpload))
		mux.Handle("GET /api/photos/{id}/download", public.then(h.Download))
		mux.Handle("GET /api/photos/{id}/comments", public.then(h.ListComments))
		mux.Handle("POST /api/photos/{id}/comments", guestWrite.then(h.CreateComment))
		mux.Handle("GET /api/photos/{id}/reactions", public.then(h.ReactionSummary))
		mux.Handle("POST /api/photos/{id}/reactions", guestWrite.then(h.ToggleReaction))
	}

	if h := cfg.Feed; h != nil {
		mux.Handle("GET /api/e/{slug}/feed", public.then(h.Feed))
		mux.Handle("GET /api/e/{slug}/slideshow", public.then(h.Slideshow))
		mux.Handle("GET /api/e/{slug}/live", public.then(h.Live))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, ErrCodeNotFound, "The requested resource was not found")
	})

	// Outermost first: request ID, tracing, logging, pprof, metrics, CORS, global limit.
	stack := chain{
		middleware.RequestID,
		middleware.Tracing(cfg.ServiceName),
		middleware.Logging(cfg.Logger),
		middleware.Profiling(cfg.Profiling, cfg.Env),
	}
	if cfg.Metrics != nil {
		stack = append(stack, middleware.HTTPMetrics(cfg.Metrics))
	}
	stack = append(stack,
		middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)),
		// Guests at a venue share one NAT address; the guest token splits them.
		limit(middleware.DefaultGlobalLimit(), middleware.GuestKeyFunc(), "global"),
	)
	return stack.then(mux.ServeHTTP)
}
