package audit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/yusufkarademir/etkinlikqr/internal/middleware"
)

var (
	// ErrNilRepository is returned when a nil repository is passed to Record.
	ErrNilRepository = errors.New("audit repository cannot be nil")
	// ErrInvalidEntityType is returned for an empty or unknown entity type.
	ErrInvalidEntityType = errors.New("invalid entity type")
	// ErrInvalidEntityID is returned when the entity ID is empty.
	ErrInvalidEntityID = errors.New("entity ID cannot be empty")
	// ErrInvalidAction is returned for an empty or unknown action.
	ErrInvalidAction = errors.New("invalid action")
)

// ValidEntityTypes defines the allowed entity types.
var ValidEntityTypes = map[string]bool{
	EntityEvent: true,
}

// ValidActions defines the allowed actions.
var ValidActions = map[string]bool{
	ActionApprovePhotos:      true,
	ActionRejectPhotos:       true,
	ActionApproveComments:    true,
	ActionRejectComments:     true,
	ActionUpdateSocialConfig: true,
	ActionSetPanicMode:       true,
	ActionDeleteEvent:        true,
}

func validateLogEntry(entry LogEntry) error {
	if !ValidEntityTypes[entry.EntityType] {
		return ErrInvalidEntityType
	}
	if entry.EntityID == "" {
		return ErrInvalidEntityID
	}
	if !ValidActions[entry.Action] {
		return ErrInvalidAction
	}
	return nil
}

type clientKey struct{}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithRequest stores the client IP and user agent of r in ctx so that records
// written further down the call chain carry them.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, clientKey{}, clientInfo{ip: extractIPAddress(r), userAgent: r.UserAgent()})
}

// CaptureClient is middleware that applies WithRequest to every request it wraps.
func CaptureClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequest(r.Context(), r)))
	})
}

// extractIPAddress returns the client IP from X-Forwarded-For, X-Real-IP or
// RemoteAddr, with any port stripped.
func extractIPAddress(r *http.Request) string {
	candidate := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			candidate = first
		}
	} else if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		candidate = xri
	}

	if host, _, err := net.SplitHostPort(candidate); err == nil {
		return host
	}
	return candidate
}

// Record appends entry, filling request ID, actor and client metadata from ctx when
// the entry leaves them empty.
func Record(ctx context.Context, repo Repository, entry LogEntry) error {
	if repo == nil {
		return ErrNilRepository
	}
	if entry.RequestID == "" {
		entry.RequestID = middleware.GetRequestID(ctx)
	}
	if entry.ActorID == "" {
		entry.ActorID = middleware.GetUserID(ctx)
	}
	if info, ok := ctx.Value(clientKey{}).(clientInfo); ok {
		if entry.IPAddress == "" {
			entry.IPAddress = info.ip
		}
		if entry.UserAgent == "" {
			entry.UserAgent = info.userAgent
		}
	}

	_, err := repo.Append(ctx, entry)
	return err
}
