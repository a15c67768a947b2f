package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// GuestTokenHeader carries the anonymous guest token on guest requests.
const GuestTokenHeader = "X-Guest-Token"

// TokenValidator validates an organizer bearer token and returns its subject.
type TokenValidator interface {
	ValidateAccessToken(token string) (userID string, err error)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// OptionalAuth stores the organizer ID in the context when a valid bearer token is
// present. Invalid or missing tokens pass through anonymously.
func OptionalAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if userID, err := v.ValidateAccessToken(token); err == nil {
					r = r.WithContext(SetUserID(r.Context(), userID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without a valid organizer bearer token with 401.
func RequireAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				ctx := SetErrorCode(r.Context(), "auth_failed")
				UpdateResponseContext(w, ctx)
				writeJSONError(w, http.StatusUnauthorized, "auth_failed", "Authentication required")
				return
			}
			userID, err := v.ValidateAccessToken(token)
			if err != nil {
				ctx := SetErrorCode(r.Context(), "auth_failed")
				UpdateResponseContext(w, ctx)
				writeJSONError(w, http.StatusUnauthorized, "auth_failed", "Invalid or expired token")
				return
			}

			ctx := SetUserID(r.Context(), userID)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeJSONError writes the API error envelope for middleware-level failures.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
