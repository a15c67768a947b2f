package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yusufkarademir/etkinlikqr/internal/idempotency"
)

// IdempotencyKeyHeader is the HTTP header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayHeader marks responses served from the idempotency cache.
const ReplayHeader = "Idempotent-Replayed"

// idempotencyResponseWriter captures the response while writing it through.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b[:n])
	return n, err
}

func (w *idempotencyResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Idempotency replays cached 2xx responses for POST requests carrying a repeated
// Idempotency-Key. The header is optional; requests without it are served normally.
// Keys are scoped per caller and route.
func Idempotency(repo idempotency.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if err := idempotency.ValidateKey(key); err != nil {
				code, message := "invalid_idempotency_key", "Invalid Idempotency-Key format"
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					code, message = "idempotency_key_too_long", "Idempotency-Key exceeds maximum length of 64 characters"
				}
				UpdateResponseContext(w, SetErrorCode(r.Context(), code))
				writeJSONError(w, http.StatusBadRequest, code, message)
				return
			}

			ctx := r.Context()
			scoped := idempotency.ScopedKey(idempotencyScope(r), r.URL.Path, key)

			existing, err := repo.Get(ctx, scoped)
			switch {
			case err == nil:
				slog.InfoContext(ctx, "replaying cached response", "route", r.URL.Path, "status", existing.ResponseStatusCode)
				contentType := existing.ContentType
				if contentType == "" {
					contentType = "application/json; charset=utf-8"
				}
				w.Header().Set("Content-Type", contentType)
				w.Header().Set(ReplayHeader, "true")
				w.WriteHeader(existing.ResponseStatusCode)
				_, _ = w.Write([]byte(existing.ResponseBody))
				return
			case !errors.Is(err, idempotency.ErrKeyNotFound):
				slog.ErrorContext(ctx, "failed to check idempotency key", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			capture := &idempotencyResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				return
			}
			body := capture.body.String()
			record := &idempotency.Record{
				Key:                scoped,
				Method:             r.Method,
				Route:              r.URL.Path,
				ResponseHash:       idempotency.ComputeResponseHash(body),
				Status:             idempotency.StatusCompleted,
				ResponseBody:       body,
				ResponseStatusCode: capture.statusCode,
				ContentType:        capture.Header().Get("Content-Type"),
			}
			// The response is already sent; a failed store only loses replay protection.
			if err := storeRecord(ctx, repo, record); err != nil {
				slog.ErrorContext(ctx, "failed to store idempotency key", "error", err)
			}
		})
	}
}

func storeRecord(ctx context.Context, repo idempotency.Repository, record *idempotency.Record) error {
	err := repo.Store(ctx, record)
	if errors.Is(err, idempotency.ErrKeyExists) {
		return nil
	}
	return err
}

func idempotencyScope(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return "user:" + id
	}
	if token := r.Header.Get(GuestTokenHeader); token != "" {
		return "guest:" + token
	}
	return "ip:" + IPKeyFunc()(r)
}
