package api

import (
	"context"
	"net/http"

	"github.com/yusufkarademir/etkinlikqr/internal/identity"
	"github.com/yusufkarademir/etkinlikqr/internal/moderation"
)

// maxBatchSize bounds the ids of one moderation request.
const maxBatchSize = 500

// ModerationHandlers serves the batch approve/reject endpoints.
type ModerationHandlers struct {
	gate *moderation.Gate
}

// NewModerationHandlers creates moderation handlers.
func NewModerationHandlers(gate *moderation.Gate) *ModerationHandlers {
	return &ModerationHandlers{gate: gate}
}

// BatchRequest is the body of every batch moderation request.
type BatchRequest struct {
	IDs []string `json:"ids"`
}

// BatchResponse reports how many items a batch changed.
type BatchResponse struct {
	Success  bool `json:"success"`
	Affected int  `json:"affected"`
}

type batchFunc func(ctx context.Context, ids []string, actor identity.Organizer) (int, error)

func (h *ModerationHandlers) batch(fn batchFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := organizer(w, r)
		if !ok {
			return
		}
		var req BatchRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.IDs) > maxBatchSize {
			fail(w, r, ErrCodeValidation, "Too many ids in one request")
			return
		}
		n, err := fn(r.Context(), req.IDs, actor)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, BatchResponse{Success: true, Affected: n})
	}
}

// ApprovePhotos handles POST /api/photos/approve.
func (h *ModerationHandlers) ApprovePhotos(w http.ResponseWriter, r *http.Request) {
	h.batch(h.gate.ApprovePhotos)(w, r)
}

// RejectPhotos handles POST /api/photos/reject.
func (h *ModerationHandlers) RejectPhotos(w http.ResponseWriter, r *http.Request) {
	h.batch(h.gate.RejectPhotos)(w, r)
}

// ApproveComments handles POST /api/comments/approve.
func (h *ModerationHandlers) ApproveComments(w http.ResponseWriter, r *http.Request) {
	h.batch(h.gate.ApproveComments)(w, r)
}

// RejectComments handles POST /api/comments/reject.
func (h *ModerationHandlers) RejectComments(w http.ResponseWriter, r *http.Request) {
	h.batch(h.gate.RejectComments)(w, r)
}
