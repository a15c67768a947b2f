package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yusufkarademir/etkinlikqr/internal/db"
	"github.com/yusufkarademir/etkinlikqr/internal/tracing"
)

const eventColumns = `id, owner_id, slug, name, description, COALESCE(cover_key, ''), starts_at,
	comments_enabled, reactions_enabled, ratings_enabled, tags_enabled, panic_mode,
	require_approval, require_moderation, created_at, updated_at`

// PostgresRepository implements Repository on the events and missions tables.
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

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e        Event
		startsAt sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.OwnerID, &e.Slug, &e.Name, &e.Description, &e.CoverKey, &startsAt,
		&e.Social.CommentsEnabled, &e.Social.ReactionsEnabled, &e.Social.RatingsEnabled,
		&e.Social.TagsEnabled, &e.Social.PanicMode, &e.Social.RequireApproval,
		&e.Social.RequireModeration, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if startsAt.Valid {
		t := startsAt.Time
		e.StartsAt = &t
	}
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create implements Repository.
func (r *PostgresRepository) Create(ctx context.Context, e *Event) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = e.CreatedAt

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, owner_id, slug, name, description, cover_key, starts_at,
			comments_enabled, reactions_enabled, ratings_enabled, tags_enabled, panic_mode,
			require_approval, require_moderation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, e.ID, e.OwnerID, e.Slug, e.Name, e.Description, nullString(e.CoverKey), nullTime(e.StartsAt),
		e.Social.CommentsEnabled, e.Social.ReactionsEnabled, e.Social.RatingsEnabled,
		e.Social.TagsEnabled, e.Social.PanicMode, e.Social.RequireApproval, e.Social.RequireModeration,
		e.CreatedAt, e.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID implements Repository.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	if !db.IsUUID(id) {
		return nil, ErrEventNotFound
	}
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

// GetBySlug implements Repository.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*Event, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events WHERE slug = $1`, slug)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, arg string) (e *Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	e, err = scanEvent(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListByOwner implements Repository.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) (events []*Event, err error) {
	if !db.IsUUID(ownerID) {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Update implements Repository.
func (r *PostgresRepository) Update(ctx context.Context, e *Event) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	err = r.db.QueryRowContext(ctx, `
		UPDATE events SET name = $2, description = $3, cover_key = $4, starts_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, e.ID, e.Name, e.Description, nullString(e.CoverKey), nullTime(e.StartsAt)).Scan(&e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// UpdateSocialConfig implements Repository.
func (r *PostgresRepository) UpdateSocialConfig(ctx context.Context, id string, cfg SocialConfig) (err error) {
	if !db.IsUUID(id) {
		return ErrEventNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET comments_enabled = $2, reactions_enabled = $3, ratings_enabled = $4,
			tags_enabled = $5, panic_mode = $6, require_approval = $7, require_moderation = $8,
			updated_at = NOW()
		WHERE id = $1
	`, id, cfg.CommentsEnabled, cfg.ReactionsEnabled, cfg.RatingsEnabled, cfg.TagsEnabled,
		cfg.PanicMode, cfg.RequireApproval, cfg.RequireModeration)
	if err != nil {
		return fmt.Errorf("update social config: %w", err)
	}
	return requireAffected(res, ErrEventNotFound)
}

// Delete implements Repository.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	if !db.IsUUID(id) {
		return ErrEventNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "events", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return requireAffected(res, ErrEventNotFound)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// CreateMission implements Repository.
func (r *PostgresRepository) CreateMission(ctx context.Context, m *Mission) (err error) {
	if !db.IsUUID(m.EventID) {
		return ErrEventNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "missions", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO missions (id, event_id, title, created_at) VALUES ($1, $2, $3, $4)
	`, m.ID, m.EventID, m.Title, m.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("insert mission: %w", err)
	}
	return nil
}

// ListMissions implements Repository.
func (r *PostgresRepository) ListMissions(ctx context.Context, eventID string) (missions []*Mission, err error) {
	if !db.IsUUID(eventID) {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "missions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, title, created_at FROM missions WHERE event_id = $1 ORDER BY created_at, id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Mission
		if err := rows.Scan(&m.ID, &m.EventID, &m.Title, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		missions = append(missions, &m)
	}
	return missions, rows.Err()
}

// GetMission implements Repository.
func (r *PostgresRepository) GetMission(ctx context.Context, id string) (m *Mission, err error) {
	if !db.IsUUID(id) {
		return nil, ErrMissionNotFound
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "missions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	m = &Mission{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, event_id, title, created_at FROM missions WHERE id = $1
	`, id).Scan(&m.ID, &m.EventID, &m.Title, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	return m, nil
}
