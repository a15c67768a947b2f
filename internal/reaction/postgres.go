package reaction

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

// PostgresRepository implements Repository on the reactions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Toggle implements Repository. The delete and insert run in one transaction. When
// a concurrent insert of the same triple wins, the reaction is present either way:
// Toggle reports added and returns the stored row.
func (r *PostgresRepository) Toggle(ctx context.Context, photoID, eventID, authorToken, emoji string) (added bool, created *Reaction, err error) {
	emoji, err = NormalizeEmoji(emoji)
	if err != nil {
		return false, nil, err
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "reactions", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, nil, fmt.Errorf("begin toggle: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, rbErr)
		}
	}()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM reactions WHERE photo_id = $1 AND author_token = $2 AND emoji = $3
	`, photoID, authorToken, emoji)
	if err != nil {
		return false, nil, fmt.Errorf("delete reaction: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("rows affected: %w", err)
	}
	if removed > 0 {
		if err = tx.Commit(); err != nil {
			return false, nil, fmt.Errorf("commit toggle: %w", err)
		}
		return false, nil, nil
	}

	created = &Reaction{
		ID:          uuid.New().String(),
		PhotoID:     photoID,
		EventID:     eventID,
		Emoji:       emoji,
		AuthorToken: authorToken,
		CreatedAt:   time.Now().UTC(),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO reactions (id, photo_id, event_id, emoji, author_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (photo_id, author_token, emoji) DO NOTHING
		RETURNING id
	`, created.ID, created.PhotoID, created.EventID, created.Emoji, created.AuthorToken, created.CreatedAt).Scan(&created.ID)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `
			SELECT id, event_id, created_at FROM reactions
			WHERE photo_id = $1 AND author_token = $2 AND emoji = $3
		`, photoID, authorToken, emoji).Scan(&created.ID, &created.EventID, &created.CreatedAt)
	}
	if err != nil {
		return false, nil, fmt.Errorf("insert reaction: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("commit toggle: %w", err)
	}
	return true, created, nil
}

// ListSince implements Repository.
func (r *PostgresRepository) ListSince(ctx context.Context, eventID string, since time.Time, limit int) (reactions []*Reaction, err error) {
	if !db.IsUUID(eventID) {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "reactions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, photo_id, event_id, emoji, author_token, created_at FROM reactions
		WHERE event_id = $1 AND created_at > $2
		ORDER BY created_at DESC, id
		LIMIT $3
	`, eventID, since, sql.NullInt64{Int64: int64(limit), Valid: limit > 0})
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var re Reaction
		if err := rows.Scan(&re.ID, &re.PhotoID, &re.EventID, &re.Emoji, &re.AuthorToken, &re.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, &re)
	}
	return reactions, rows.Err()
}

// Summary implements Repository.
func (r *PostgresRepository) Summary(ctx context.Context, photoID string) (s Summary, err error) {
	if !db.IsUUID(photoID) {
		return Summary{}, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "reactions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT emoji, COUNT(*) FROM reactions WHERE photo_id = $1 GROUP BY emoji
	`, photoID)
	if err != nil {
		return nil, fmt.Errorf("summarize reactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			emoji string
			n     int
		)
		if err := rows.Scan(&emoji, &n); err != nil {
			return nil, fmt.Errorf("scan reaction count: %w", err)
		}
		counts[emoji] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summarize(counts), nil
}

// DeleteByEvent implements Repository.
func (r *PostgresRepository) DeleteByEvent(ctx context.Context, eventID string) (n int, err error) {
	if !db.IsUUID(eventID) {
		return 0, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "reactions", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM reactions WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event reactions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}
