package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/yusufkarademir/etkinlikqr/internal/audit"
	"github.com/yusufkarademir/etkinlikqr/internal/idempotency"
)

// Schedules, with a leading seconds field.
const (
	SpecBlobSweep          = "0 */5 * * * *"
	SpecIdempotencyCleanup = "0 0 * * * *"
	SpecRateLimitCleanup   = "0 */10 * * * *"
	SpecAuditAnonymize     = "0 30 3 * * *"
)

// DefaultSweepBatch is the number of orphaned keys one sweep retries.
const DefaultSweepBatch = 500

// IdempotencyExpiry is how long cached upload responses are replayed.
const IdempotencyExpiry = 24 * time.Hour

// BlobDeleter deletes objects and reports the keys it could not delete.
type BlobDeleter interface {
	DeleteObjects(ctx context.Context, keys []string) (failed []string, err error)
}

// BlobSweeper retries deletes queued by moderation.
type BlobSweeper struct {
	Queue OrphanQueue
	Blobs BlobDeleter
	Batch int
}

// Run pops one batch, deletes it and puts failures back. It returns the number
// of keys deleted.
func (s *BlobSweeper) Run(ctx context.Context) (int, error) {
	batch := s.Batch
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	keys, err := s.Queue.Pop(ctx, batch)
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	failed, err := s.Blobs.DeleteObjects(ctx, keys)
	if err != nil && len(failed) == 0 {
		failed = keys
	}
	if len(failed) > 0 {
		if pushErr := s.Queue.Push(context.WithoutCancel(ctx), failed...); pushErr != nil {
			return len(keys) - len(failed), fmt.Errorf("requeue %d keys: %w", len(failed), pushErr)
		}
	}
	if err != nil {
		return len(keys) - len(failed), fmt.Errorf("delete orphaned blobs: %w", err)
	}
	return len(keys) - len(failed), nil
}

// Task returns the sweeper as a scheduled task.
func (s *BlobSweeper) Task() Task {
	return Task{Type: JobTypeBlobSweep, Spec: SpecBlobSweep, Run: s.Run}
}

// IdempotencyCleanupTask deletes idempotency records older than expiry.
func IdempotencyCleanupTask(repo idempotency.Repository, expiry time.Duration) Task {
	return Task{
		Type: JobTypeIdempotencyCleanup,
		Spec: SpecIdempotencyCleanup,
		Run: func(ctx context.Context) (int, error) {
			n, err := repo.DeleteOlderThan(ctx, expiry)
			return int(n), err
		},
	}
}

// BucketCleaner is a rate-limit store with expiring in-process buckets.
type BucketCleaner interface {
	Cleanup() int
}

// RateLimitCleanupTask drops expired rate-limit buckets.
func RateLimitCleanupTask(store BucketCleaner) Task {
	return Task{
		Type: JobTypeRateLimitCleanup,
		Spec: SpecRateLimitCleanup,
		Run: func(context.Context) (int, error) {
			return store.Cleanup(), nil
		},
	}
}

// AuditAnonymizeTask anonymizes IP addresses of audit records past retention.
func AuditAnonymizeTask(job *audit.AnonymizationJob) Task {
	return Task{Type: JobTypeAuditAnonymize, Spec: SpecAuditAnonymize, Run: job.Run}
}
