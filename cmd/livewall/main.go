// Package main runs a headless live wall: it polls an event's feed or slideshow
// and logs every item that appears, the way a venue screen would render it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/yusufkarademir/etkinlikqr/internal/client"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
	"github.com/yusufkarademir/etkinlikqr/internal/middleware"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	slug := flag.String("event", "", "event slug (required)")
	mode := flag.String("mode", "feed", "feed or slideshow")
	env := flag.String("env", "development", "logging environment")
	flag.Parse()

	logger := middleware.NewLogger(*env)
	slog.SetDefault(logger)

	if *slug == "" {
		fmt.Fprintln(os.Stderr, "livewall: -event is required")
		flag.Usage()
		os.Exit(2)
	}

	c := client.New(*baseURL, uuid.NewString())
	fetcher, cfg, err := pollerFor(c, *slug, *mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "livewall:", err)
		os.Exit(2)
	}
	cfg.Logger = logger
	cfg.OnUpdate = func(u feed.Update) { logUpdate(logger, u) }

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := feed.NewPoller(fetcher, cfg)
	if err := poller.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}
	logger.Info("live wall started", "event", *slug, "mode", *mode, "url", *baseURL)

	<-ctx.Done()
	poller.Stop()
	logger.Info("live wall stopped", "items", len(poller.Items()))
}

// pollerFor picks the endpoint, interval and display cap for mode.
func pollerFor(c *client.Client, slug, mode string) (feed.Fetcher, feed.PollerConfig, error) {
	switch mode {
	case "feed":
		return c.FeedFetcher(slug), feed.PollerConfig{Interval: feed.SocialInterval, Cap: feed.SocialFeedCap}, nil
	case "slideshow":
		return c.SlideshowFetcher(slug), feed.PollerConfig{Interval: feed.SlideshowInterval, Cap: feed.PhotoFeedCap}, nil
	default:
		return nil, feed.PollerConfig{}, fmt.Errorf("unknown mode %q", mode)
	}
}

func logUpdate(logger *slog.Logger, u feed.Update) {
	if u.Panic {
		logger.Warn("event is in panic mode, wall cleared")
		return
	}
	for _, it := range u.Added {
		logger.Info("new item", describe(it)...)
	}
}

// describe flattens an item into log attributes.
func describe(it feed.Item) []any {
	attrs := []any{"type", string(it.Kind), "id", it.ID, "at", it.Timestamp}
	switch {
	case it.Photo != nil:
		attrs = append(attrs, "url", it.Photo.URL)
	case it.Comment != nil:
		attrs = append(attrs, "author", it.Comment.AuthorName, "content", it.Comment.Content)
	case it.Reaction != nil:
		attrs = append(attrs, "emoji", it.Reaction.Emoji)
	}
	return attrs
}
