package comment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yusufkarademir/etkinlikqr/internal/db"
	"github.com/yusufkarademir/etkinlikqr/internal/tracing"
)

const commentColumns = `id, photo_id, event_id, content, author_token, author_name, status, created_at`

// PostgresRepository implements Repository on the comments table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func scanComments(rows *sql.Rows) ([]*Comment, error) {
	defer rows.Close()
	var out []*Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PhotoID, &c.EventID, &c.Content, &c.AuthorToken,
			&c.AuthorName, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, c *Comment) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO comments (id, photo_id, event_id, content, author_token, author_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.PhotoID, c.EventID, c.Content, c.AuthorToken, c.AuthorName, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetMany implements Repository.
func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) (comments []*Comment, err error) {
	ids = db.FilterUUIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	return scanComments(rows)
}

// Approve implements Repository.
func (r *PostgresRepository) Approve(ctx context.Context, ids []string) (n int, err error) {
	ids = db.FilterUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE comments SET status = 'approved' WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("approve comments: %w", err)
	}
	return affected(res)
}

// Delete implements Repository.
func (r *PostgresRepository) Delete(ctx context.Context, ids []string) (n int, err error) {
	ids = db.FilterUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete comments: %w", err)
	}
	return affected(res)
}

// ListByPhoto implements Repository.
func (r *PostgresRepository) ListByPhoto(ctx context.Context, photoID string, approvedOnly bool) (comments []*Comment, err error) {
	if !db.IsUUID(photoID) {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE photo_id = $1 AND (NOT $2 OR status = 'approved')
		ORDER BY created_at, id
	`, photoID, approvedOnly)
	if err != nil {
		return nil, fmt.Errorf("list photo comments: %w", err)
	}
	return scanComments(rows)
}

// ListPending implements Repository.
func (r *PostgresRepository) ListPending(ctx context.Context, eventID string) (comments []*Comment, err error) {
	if !db.IsUUID(eventID) {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE event_id = $1 AND status = 'pending'
		ORDER BY created_at, id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list pending comments: %w", err)
	}
	return scanComments(rows)
}

// ListApprovedSince implements Repository.
func (r *PostgresRepository) ListApprovedSince(ctx context.Context, eventID string, since time.Time, limit int) (comments []*Comment, err error) {
	if !db.IsUUID(eventID) {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE event_id = $1 AND status = 'approved' AND created_at > $2
		ORDER BY created_at DESC, id
		LIMIT $3
	`, eventID, since, sql.NullInt64{Int64: int64(limit), Valid: limit > 0})
	if err != nil {
		return nil, fmt.Errorf("list approved comments: %w", err)
	}
	return scanComments(rows)
}

// DeleteByEvent implements Repository.
func (r *PostgresRepository) DeleteByEvent(ctx context.Context, eventID string) (n int, err error) {
	if !db.IsUUID(eventID) {
		return 0, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event comments: %w", err)
	}
	return affected(res)
}
