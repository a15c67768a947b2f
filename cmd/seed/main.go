// Package main seeds a database with a demo organizer, an event and its photo
// missions so a fresh deployment has something to point a phone at.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/yusufkarademir/etkinlikqr/internal/config"
	"github.com/yusufkarademir/etkinlikqr/internal/db"
	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/middleware"
	"github.com/yusufkarademir/etkinlikqr/internal/user"
)

var defaultMissions = []string{
	"Gelinle bir özçekim",
	"Dans pistinden bir kare",
	"Masanızdaki herkesle bir fotoğraf",
}

type seedOptions struct {
	Email     string
	Password  string
	Name      string
	EventName string
	Missions  []string
	Social    event.SocialConfig
}

type seedResult struct {
	Organizer *user.User
	Event     *event.Event
	Missions  []*event.Mission
}

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	email := flag.String("email", "demo@etkinlikqr.local", "organizer email")
	password := flag.String("password", "demo-parola-123", "organizer password")
	name := flag.String("name", "Demo Organizatör", "organizer display name")
	eventName := flag.String("event", "Ayşe & Mehmet Düğün", "event name")
	moderated := flag.Bool("moderated", false, "hold guest photos and comments for approval")
	flag.Parse()

	logger := middleware.NewLogger(config.DefaultEnv)
	slog.SetDefault(logger)

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	social := event.DefaultSocialConfig()
	social.RequireApproval = *moderated
	social.RequireModeration = *moderated

	res, err := seed(ctx, user.NewPostgresRepository(conn), event.NewPostgresRepository(conn), seedOptions{
		Email:     *email,
		Password:  *password,
		Name:      *name,
		EventName: *eventName,
		Missions:  defaultMissions,
		Social:    social,
	})
	if err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seeded demo event",
		"organizer_id", res.Organizer.ID,
		"event_id", res.Event.ID,
		"missions", len(res.Missions),
		"guest_url", strings.TrimRight(cfg.PublicAppURL, "/")+"/e/"+res.Event.Slug,
	)
}

// seed creates the organizer unless the email is already registered, then adds a new
// event with its missions. Running it twice yields two events for the same organizer.
func seed(ctx context.Context, users user.Repository, events event.Repository, opts seedOptions) (*seedResult, error) {
	organizer, err := users.GetByEmail(ctx, strings.ToLower(opts.Email))
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		hash, err := user.HashPassword(opts.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		organizer = &user.User{Email: strings.ToLower(opts.Email), PasswordHash: hash, Name: opts.Name}
		if err := users.Create(ctx, organizer); err != nil {
			return nil, fmt.Errorf("create organizer: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("look up organizer: %w", err)
	}

	ev := &event.Event{OwnerID: organizer.ID, Name: opts.EventName, Social: opts.Social}
	if err := event.CreateWithSlug(ctx, events, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	res := &seedResult{Organizer: organizer, Event: ev}
	for _, title := range opts.Missions {
		m := &event.Mission{EventID: ev.ID, Title: title}
		if err := events.CreateMission(ctx, m); err != nil {
			return nil, fmt.Errorf("create mission %q: %w", title, err)
		}
		res.Missions = append(res.Missions, m)
	}
	return res, nil
}
