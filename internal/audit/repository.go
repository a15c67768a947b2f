package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; records keep insertion order.
type InMemoryRepository struct {
	mu   sync.RWMutex
	logs []*Log
	now  func() time.Time
}

// NewInMemoryRepository creates an empty in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: func() time.Time { return time.Now().UTC() }}
}

// Append implements Repository.
func (r *InMemoryRepository) Append(_ context.Context, entry LogEntry) (*Log, error) {
	if err := validateLogEntry(entry); err != nil {
		return nil, err
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeSuccess
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := &Log{
		ID:         uuid.New().String(),
		ActorID:    entry.ActorID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Outcome:    entry.Outcome,
		Count:      entry.Count,
		CreatedAt:  r.now(),
		RequestID:  entry.RequestID,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
	}
	if n := len(r.logs); n > 0 {
		log.PreviousHash = Hash(r.logs[n-1])
	}
	r.logs = append(r.logs, log)

	out := *log
	return &out, nil
}

func (r *InMemoryRepository) query(match func(*Log) bool, limit int) []*Log {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Log
	for i := len(r.logs) - 1; i >= 0; i-- {
		if !match(r.logs[i]) {
			continue
		}
		lc := *r.logs[i]
		out = append(out, &lc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// QueryByEntity implements Repository.
func (r *InMemoryRepository) QueryByEntity(_ context.Context, entityType, entityID string, limit int) ([]*Log, error) {
	return r.query(func(l *Log) bool {
		return l.EntityType == entityType && l.EntityID == entityID
	}, limit), nil
}

// QueryByActor implements Repository.
func (r *InMemoryRepository) QueryByActor(_ context.Context, actorID string, limit int) ([]*Log, error) {
	return r.query(func(l *Log) bool { return l.ActorID == actorID }, limit), nil
}

// AnonymizeBefore implements Repository.
func (r *InMemoryRepository) AnonymizeBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, l := range r.logs {
		if l.IPAnonymized || l.IPAddress == "" || !l.CreatedAt.Before(cutoff) {
			continue
		}
		l.IPAddress = AnonymizeIP(l.IPAddress)
		l.IPAnonymized = true
		n++
	}
	return n, nil
}

// Hash returns the chain hash of a record. IP address and user agent are left out
// so anonymization does not break the chain.
func Hash(l *Log) string {
	h := sha256.New()
	for _, field := range []string{
		l.ID, l.ActorID, l.EntityType, l.EntityID, l.Action, l.Outcome,
		strconv.Itoa(l.Count), l.CreatedAt.UTC().Format(time.RFC3339Nano), l.RequestID, l.PreviousHash,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain checks that logs, oldest first, link by PreviousHash. It returns the
// index of the first broken link, or -1.
func VerifyChain(logs []*Log) int {
	for i := 1; i < len(logs); i++ {
		if logs[i].PreviousHash != Hash(logs[i-1]) {
			return i
		}
	}
	return -1
}
