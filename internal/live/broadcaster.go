// Package live pushes approved content to live walls over WebSocket.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yusufkarademir/etkinlikqr/internal/feed"
)

// Frame types.
const (
	FrameItems = "items"
	FramePanic = "panic"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// sendBuffer is how many frames a wall may fall behind before frames are dropped.
	sendBuffer = 32
)

// Frame is one message sent to subscribers.
type Frame struct {
	Type  string      `json:"type"`
	Items []feed.Item `json:"items,omitempty"`
	Panic *bool       `json:"panic,omitempty"`
}

// subscriber is one wall connection. Only its writer goroutine writes to conn.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
}

func (s *subscriber) write(messageType int, data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// Config configures a Broadcaster.
type Config struct {
	// AllowedOrigins restricts the Origin of upgrade requests. Empty allows any origin.
	AllowedOrigins []string
	Logger         *slog.Logger
	Metrics        *Metrics
}

// Broadcaster keeps the WebSocket subscribers of each event slug.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]bool

	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *Metrics
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(cfg Config) *Broadcaster {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	b := &Broadcaster{
		subscribers: make(map[string]map[*subscriber]bool),
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(allowed) == 0 || origin == "" || allowed["*"] {
				return true
			}
			if allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
	return b
}

func (b *Broadcaster) subscribe(slug string, s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[slug] == nil {
		b.subscribers[slug] = make(map[*subscriber]bool)
	}
	b.subscribers[slug][s] = true
	if b.metrics != nil {
		b.metrics.connections.Inc()
	}
}

func (b *Broadcaster) unsubscribe(slug string, s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[slug]
	if !subs[s] {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(b.subscribers, slug)
	}
	if b.metrics != nil {
		b.metrics.connections.Dec()
	}
}

// ConnectionCount returns the number of subscribers of slug.
func (b *Broadcaster) ConnectionCount(slug string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[slug])
}

// Publish sends approved items to the live walls of slug.
func (b *Broadcaster) Publish(slug string, items []feed.Item) {
	if len(items) == 0 {
		return
	}
	b.broadcast(slug, Frame{Type: FrameItems, Items: items})
}

// PublishPanic tells the live walls of slug to hide or restore content.
func (b *Broadcaster) PublishPanic(slug string, on bool) {
	b.broadcast(slug, Frame{Type: FramePanic, Panic: &on})
}

func (b *Broadcaster) broadcast(slug string, frame Frame) {
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subscribers[slug]))
	for s := range b.subscribers[slug] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error("failed to marshal live frame", "error", err)
		return
	}
	for _, s := range targets {
		select {
		case s.send <- data:
			if b.metrics != nil {
				b.metrics.framesSent.WithLabelValues(frame.Type).Inc()
			}
		default:
			// The wall is not draining; it catches up from the delta feed.
			b.logger.Warn("live wall too slow, dropping frame", "slug", slug, "type", frame.Type)
			if b.metrics != nil {
				b.metrics.framesDropped.WithLabelValues(frame.Type).Inc()
			}
		}
	}
}

// Serve upgrades r and keeps the connection subscribed to slug until the client
// disconnects or ctx ends. The caller must have resolved slug to an event.
func (b *Broadcaster) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, slug string) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WarnContext(ctx, "failed to upgrade websocket connection", "slug", slug, "error", err)
		return
	}
	s := newSubscriber(conn)
	b.subscribe(slug, s)
	b.logger.InfoContext(ctx, "live wall connected", "slug", slug)

	done := make(chan struct{})
	defer func() {
		close(done)
		b.unsubscribe(slug, s)
		_ = conn.Close()
		b.logger.InfoContext(ctx, "live wall disconnected", "slug", slug)
	}()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case data := <-s.send:
				if err := s.write(websocket.TextMessage, data); err != nil {
					b.logger.Warn("failed to send live frame", "slug", slug, "error", err)
					// Closing makes the read loop below exit and unsubscribe.
					_ = conn.Close()
					return
				}
			case <-ticker.C:
				if err := s.write(websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Clients do not send data; reading detects disconnects and handles control frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.DebugContext(ctx, "live wall closed unexpectedly", "slug", slug, "error", err)
			}
			return
		}
	}
}
