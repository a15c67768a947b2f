package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yusufkarademir/etkinlikqr/internal/event"
	"github.com/yusufkarademir/etkinlikqr/internal/moderation"
	"github.com/yusufkarademir/etkinlikqr/internal/upload"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, context.Background(), http.StatusNotFound, ErrCodeNotFound, "Event not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != ErrCodeNotFound || resp.Error.Message != "Event not found" {
		t.Errorf("body = %+v", resp)
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{moderation.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
		{fmt.Errorf("wrapped: %w", event.ErrEventNotFound), http.StatusNotFound, ErrCodeNotFound},
		{moderation.ErrEmptyBatch, http.StatusBadRequest, ErrCodeValidation},
		{errFeatureDisabled, http.StatusForbidden, ErrCodeFeatureDisabled},
		{errPanicMode, http.StatusLocked, ErrCodePanicMode},
		{upload.ErrUnsupportedType, http.StatusUnsupportedMediaType, ErrCodeUnsupportedType},
		{upload.ErrFileTooLarge, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			writeDomainError(w, r, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}
