package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/yusufkarademir/etkinlikqr/internal/api"
	"github.com/yusufkarademir/etkinlikqr/internal/audit"
	"github.com/yusufkarademir/etkinlikqr/internal/auth"
	"github.com/yusufkarademir/etkinlikqr/internal/cache"
	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/config"
	"github.com/yusufkarademir/etkinlikqr/internal/db"
	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
	"github.com/yusufkarademir/etkinlikqr/internal/health"
	"github.com/yusufkarademir/etkinlikqr/internal/idempotency"
	"github.com/yusufkarademir/etkinlikqr/internal/image"
	"github.com/yusufkarademir/etkinlikqr/internal/jobs"
	"github.com/yusufkarademir/etkinlikqr/internal/live"
	"github.com/yusufkarademir/etkinlikqr/internal/middleware"
	"github.com/yusufkarademir/etkinlikqr/internal/moderation"
	"github.com/yusufkarademir/etkinlikqr/internal/photo"
	"github.com/yusufkarademir/etkinlikqr/internal/profanity"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
	"github.com/yusufkarademir/etkinlikqr/internal/upload"
	"github.com/yusufkarademir/etkinlikqr/internal/user"
)

const serviceName = "etkinlikqr-api"

// repositories groups the persistence layer, Postgres or in-memory.
type repositories struct {
	users     user.Repository
	events    event.Repository
	photos    photo.Repository
	comments  comment.Repository
	reactions reaction.Repository
	audit     audit.Repository
}

func postgresRepositories(conn *sql.DB) repositories {
	return repositories{
		users:     user.NewPostgresRepository(conn),
		events:    event.NewPostgresRepository(conn),
		photos:    photo.NewPostgresRepository(conn),
		comments:  comment.NewPostgresRepository(conn),
		reactions: reaction.NewPostgresRepository(conn),
		audit:     audit.NewPostgresRepository(conn),
	}
}

func memoryRepositories() repositories {
	return repositories{
		users:     user.NewInMemoryRepository(),
		events:    event.NewInMemoryRepository(),
		photos:    photo.NewInMemoryRepository(),
		comments:  comment.NewInMemoryRepository(),
		reactions: reaction.NewInMemoryRepository(),
		audit:     audit.NewInMemoryRepository(),
	}
}

// app is the wired API server.
type app struct {
	handler   http.Handler
	scheduler *jobs.Scheduler
	logger    *slog.Logger
	closers   []func() error
}

// newApp connects the configured backends and wires every component. Backends that
// are not configured fall back to in-process implementations.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()
	checkers := make(map[string]health.Checker)

	repos := memoryRepositories()
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		if err := db.Migrate(ctx, conn); err != nil {
			return nil, err
		}
		repos = postgresRepositories(conn)
		checkers["database"] = health.NewDBChecker(conn)
		logger.Info("using postgres repositories")
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
	}

	var (
		galleryCache cache.GalleryCache = cache.NewMemoryGalleryCache(cache.DefaultTTL)
		orphans      jobs.OrphanQueue   = jobs.NewMemoryOrphanQueue()
		idemRepo     idempotency.Repository
		rateStore    middleware.RateLimitStore
		memoryLimits *middleware.InMemoryRateLimitStore
	)
	httpMetrics := middleware.NewMetrics()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		galleryCache = cache.NewRedisGalleryCache(client, cache.DefaultTTL)
		orphans = jobs.NewRedisOrphanQueue(client)
		idemRepo = idempotency.NewRedisRepository(client, jobs.IdempotencyExpiry)
		rateStore = middleware.NewRedisRateLimitStore(client).WithMetrics(httpMetrics)
		checkers["redis"] = health.NewRedisChecker(client)
		logger.Info("using redis for cache, rate limits and idempotency")
	} else {
		memoryLimits = middleware.NewInMemoryRateLimitStore()
		rateStore = memoryLimits
		idemRepo = idempotency.NewInMemoryRepository()
	}

	var store upload.Store
	if cfg.StorageConfigured() {
		s3Store, err := upload.NewS3Store(upload.S3Config{
			Bucket:          cfg.S3BucketName,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			PublicBaseURL:   cfg.MediaPublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
		checkers["storage"] = s3Store
	} else {
		logger.Warn("object storage not configured, keeping uploads in memory")
		store = upload.NewMemoryStore(fmt.Sprintf("http://localhost:%d/media", cfg.Port))
	}
	uploads := upload.NewService(store, image.NewSanitizer(image.DefaultConfig(), logger), upload.ServiceConfig{
		MaxSizeMB: cfg.MaxUploadSizeMB,
	})

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	liveMetrics := live.NewMetrics()
	moderationMetrics := moderation.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for _, r := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, liveMetrics, moderationMetrics, jobMetrics} {
		if err := r.Register(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	broadcaster := live.NewBroadcaster(live.Config{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
		Metrics:        liveMetrics,
	})
	gate := moderation.NewGate(moderation.Deps{
		Events:    repos.events,
		Photos:    repos.photos,
		Comments:  repos.comments,
		Reactions: repos.reactions,
		Audit:     repos.audit,
		Blobs:     uploads,
		Orphans:   orphans,
		Cache:     galleryCache,
		Publisher: broadcaster,
		Metrics:   moderationMetrics,
		Logger:    logger,
	})
	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	a.handler = api.NewRouter(api.RouterConfig{
		Auth:       api.NewAuthHandlers(repos.users, jwtService),
		Events:     api.NewEventHandlers(repos.events, gate, uploads, repos.audit, cfg.PublicAppURL),
		Moderation: api.NewModerationHandlers(gate),
		Guest: api.NewGuestHandlers(api.GuestConfig{
			Events:       repos.events,
			Photos:       repos.photos,
			Comments:     repos.comments,
			Reactions:    repos.reactions,
			Uploads:      uploads,
			Cache:        galleryCache,
			Publisher:    broadcaster,
			Filter:       profanity.Default(),
			PublicAppURL: cfg.PublicAppURL,
		}),
		Feed:   api.NewFeedHandlers(feed.NewService(repos.events, repos.photos, repos.comments, repos.reactions), repos.events, broadcaster),
		Health: api.NewHealthHandlers(checkers),

		Tokens:         jwtService,
		RateLimits:     rateStore,
		Idempotency:    idemRepo,
		Metrics:        httpMetrics,
		Gatherer:       reg,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ServiceName:    serviceName,
		Logger:         logger,
		Profiling:      cfg.ProfilingEnabled,
		Env:            cfg.Env,
	})

	a.scheduler = jobs.NewScheduler(jobMetrics, logger)
	tasks := []jobs.Task{
		(&jobs.BlobSweeper{Queue: orphans, Blobs: uploads}).Task(),
		jobs.IdempotencyCleanupTask(idemRepo, jobs.IdempotencyExpiry),
		jobs.AuditAnonymizeTask(&audit.AnonymizationJob{Repository: repos.audit, Logger: logger}),
	}
	if memoryLimits != nil {
		tasks = append(tasks, jobs.RateLimitCleanupTask(memoryLimits))
	}
	for _, t := range tasks {
		if err := a.scheduler.Add(t); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// close releases backend connections in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, redis.ErrClosed) {
			a.logger.Error("failed to close backend", "error", err)
		}
	}
	a.closers = nil
}
