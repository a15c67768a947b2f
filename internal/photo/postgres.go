package photo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yusufkarademir/etkinlikqr/internal/db"
	"github.com/yusufkarademir/etkinlikqr/internal/tracing"
)

const photoColumns = `id, event_id, url, object_key, media_type, status, mission_id, download_count, created_at, updated_at`

// PostgresRepository implements Repository on the photos table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var (
		p         Photo
		missionID sql.NullString
	)
	if err := row.Scan(&p.ID, &p.EventID, &p.URL, &p.ObjectKey, &p.MediaKind, &p.Status,
		&missionID, &p.Downloads, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if missionID.Valid {
		p.MissionID = &missionID.String
	}
	return &p, nil
}

func scanPhotos(rows *sql.Rows) ([]*Photo, error) {
	defer rows.Close()
	var out []*Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func limitArg(limit int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, p *Photo) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "photos", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Status == "" {
		p.Status = StatusPending
	}

	var missionID sql.NullString
	if p.MissionID != nil {
		missionID = sql.NullString{String: *p.MissionID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO photos (id, event_id, url, object_key, media_type, status, mission_id, download_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.EventID, p.URL, p.ObjectKey, p.MediaKind, p.Status, missionID, p.Downloads, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// GetByID implements Repository.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (p *Photo, err error) {
	if !db.IsUUID(id) {
		return nil, ErrPhotoNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "photos", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	p, err = scanPhoto(r.db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

// GetMany implements Repository.
func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) (photos []*Photo, err error) {
	ids = db.FilterUUIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "photos", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get photos: %w", err)
	}
	return scanPhotos(rows)
}

// ListByEvent implements Repository.
func (r *PostgresRepository) ListByEvent(ctx context.Context, eventID string, status Status, limit int) (photos []*Photo, err error) {
	if !db.IsUUID(eventID) {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "photos", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+photoColumns+` FROM photos
		WHERE event_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, eventID, string(status), limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return scanPhotos(rows)
}

// Approve implements Repository.
func (r *PostgresRepository) Approve(ctx context.Context, ids []string, now time.Time) (n int, err error) {
	ids = db.FilterUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "photos", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `
		UPDATE photos SET status = 'approved', updated_at = $2 WHERE id = ANY($1::uuid[])
	`, pq.Array(ids), now)
	if err != nil {
		return 0, fmt.Errorf("approve photos: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// Delete implements Repository.
func (r *PostgresRepository) Delete(ctx context.Context, ids []string) (photos []*Photo, err error) {
	ids = db.FilterUUIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "photos", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `DELETE FROM photos WHERE id = ANY($1::uuid[]) RETURNING `+photoColumns, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("delete photos: %w", err)
	}
	return scanPhotos(rows)
}

// DeleteByEvent implements Repository.
func (r *PostgresRepository) DeleteByEvent(ctx context.Context, eventID string) (photos []*Photo, err error) {
	if !db.IsUUID(eventID) {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "photos", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `DELETE FROM photos WHERE event_id = $1 RETURNING `+photoColumns, eventID)
	if err != nil {
		return nil, fmt.Errorf("delete event photos: %w", err)
	}
	return scanPhotos(rows)
}

// ListChangedSince implements Repository.
func (r *PostgresRepository) ListChangedSince(ctx context.Context, eventID string, since time.Time, limit int) (photos []*Photo, err error) {
	if !db.IsUUID(eventID) {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "photos", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+photoColumns+` FROM photos
		WHERE event_id = $1 AND status = 'approved' AND (created_at > $2 OR updated_at > $2)
		ORDER BY updated_at DESC, id
		LIMIT $3
	`, eventID, since, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list changed photos: %w", err)
	}
	return scanPhotos(rows)
}

// IncrementDownloads implements Repository.
func (r *PostgresRepository) IncrementDownloads(ctx context.Context, id string) (err error) {
	if !db.IsUUID(id) {
		return ErrPhotoNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "photos", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE photos SET download_count = download_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment downloads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrPhotoNotFound
	}
	return nil
}
