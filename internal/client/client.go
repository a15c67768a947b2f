// Package client is a Go client for the guest-facing EtkinlikQR API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/comment"
	"github.com/yusufkarademir/etkinlikqr/internal/feed"
	"github.com/yusufkarademir/etkinlikqr/internal/reaction"
)

// DefaultTimeout bounds a single request when the caller supplies no HTTP client.
const DefaultTimeout = 10 * time.Second

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an API error with the given code.
func IsCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client calls the public API as one guest.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// GuestToken is sent as X-Guest-Token on every request when set.
	GuestToken string
}

// New creates a Client with a default HTTP client.
func New(baseURL, guestToken string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTP:       &http.Client{Timeout: DefaultTimeout},
		GuestToken: guestToken,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.GuestToken != "" {
		req.Header.Set("X-Guest-Token", c.GuestToken)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env)
		return &Error{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func sinceQuery(since *time.Time) url.Values {
	if since == nil {
		return nil
	}
	return url.Values{"since": {since.UTC().Format(time.RFC3339Nano)}}
}

// GetFeed fetches the social feed delta of slug after since.
func (c *Client) GetFeed(ctx context.Context, slug string, since *time.Time) (*feed.Feed, error) {
	var f feed.Feed
	if err := c.do(ctx, http.MethodGet, "/api/e/"+url.PathEscape(slug)+"/feed", sinceQuery(since), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetSlideshow fetches the photo-only delta of slug after since.
func (c *Client) GetSlideshow(ctx context.Context, slug string, since *time.Time) (*feed.Feed, error) {
	var f feed.Feed
	if err := c.do(ctx, http.MethodGet, "/api/e/"+url.PathEscape(slug)+"/slideshow", sinceQuery(since), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// SubmitComment posts a comment on a photo. The returned comment may be pending.
func (c *Client) SubmitComment(ctx context.Context, photoID, content, authorName string) (*comment.Comment, error) {
	body := map[string]string{"content": content}
	if authorName != "" {
		body["author_name"] = authorName
	}
	var out comment.Comment
	if err := c.do(ctx, http.MethodPost, "/api/photos/"+url.PathEscape(photoID)+"/comments", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReactionResult is the outcome of a toggle.
type ReactionResult struct {
	Added   bool             `json:"added"`
	Summary reaction.Summary `json:"summary"`
}

// ToggleReaction adds or removes the guest's emoji reaction on a photo.
func (c *Client) ToggleReaction(ctx context.Context, photoID, emoji string) (*ReactionResult, error) {
	var out ReactionResult
	if err := c.do(ctx, http.MethodPost, "/api/photos/"+url.PathEscape(photoID)+"/reactions", nil, map[string]string{"emoji": emoji}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FeedFetcher adapts GetFeed for a feed.Poller.
func (c *Client) FeedFetcher(slug string) feed.Fetcher {
	return feed.FetchFunc(func(ctx context.Context, since *time.Time) (*feed.Feed, error) {
		return c.GetFeed(ctx, slug, since)
	})
}

// SlideshowFetcher adapts GetSlideshow for a feed.Poller.
func (c *Client) SlideshowFetcher(slug string) feed.Fetcher {
	return feed.FetchFunc(func(ctx context.Context, since *time.Time) (*feed.Feed, error) {
		return c.GetSlideshow(ctx, slug, since)
	})
}
