package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yusufkarademir/etkinlikqr/internal/tracing"
)

const logColumns = `id, actor_id, entity_type, entity_id, action, outcome, affected, request_id, ip_address, user_agent, previous_hash, ip_anonymized, created_at`

// appendLockKey serializes appends so each record links to its true predecessor.
const appendLockKey = 0x6175646974

// PostgresRepository implements Repository on the audit_logs table.
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

func scanLog(row rowScanner) (*Log, error) {
	var l Log
	if err := row.Scan(&l.ID, &l.ActorID, &l.EntityType, &l.EntityID, &l.Action, &l.Outcome, &l.Count,
		&l.RequestID, &l.IPAddress, &l.UserAgent, &l.PreviousHash, &l.IPAnonymized, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

// Append implements Repository.
func (r *PostgresRepository) Append(ctx context.Context, entry LogEntry) (_ *Log, err error) {
	if err := validateLogEntry(entry); err != nil {
		return nil, err
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeSuccess
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_logs", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin audit append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return nil, fmt.Errorf("lock audit chain: %w", err)
	}

	log := &Log{
		ID:         uuid.New().String(),
		ActorID:    entry.ActorID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Outcome:    entry.Outcome,
		Count:      entry.Count,
		// Microsecond precision matches what Postgres stores, keeping hashes stable.
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		RequestID: entry.RequestID,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
	}

	prev, err := scanLog(tx.QueryRowContext(ctx, `SELECT `+logColumns+` FROM audit_logs ORDER BY seq DESC LIMIT 1`))
	switch {
	case err == nil:
		log.PreviousHash = Hash(prev)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("load previous audit log: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO audit_logs (`+logColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12)`,
		log.ID, log.ActorID, log.EntityType, log.EntityID, log.Action, log.Outcome, log.Count,
		log.RequestID, log.IPAddress, log.UserAgent, log.PreviousHash, log.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit audit append: %w", err)
	}
	return log, nil
}

func (r *PostgresRepository) query(ctx context.Context, where string, limit int, args ...any) (_ []*Log, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_logs", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	args = append(args, sql.NullInt64{Int64: int64(limit), Valid: limit > 0})
	q := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE %s ORDER BY seq DESC LIMIT $%d`, logColumns, where, len(args))
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var out []*Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// QueryByEntity implements Repository.
func (r *PostgresRepository) QueryByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Log, error) {
	return r.query(ctx, `entity_type = $1 AND entity_id = $2`, limit, entityType, entityID)
}

// QueryByActor implements Repository.
func (r *PostgresRepository) QueryByActor(ctx context.Context, actorID string, limit int) ([]*Log, error) {
	return r.query(ctx, `actor_id = $1`, limit, actorID)
}

// AnonymizeBefore implements Repository. Addresses are truncated in Go so both
// IPv4 and IPv6 follow AnonymizeIP.
func (r *PostgresRepository) AnonymizeBefore(ctx context.Context, cutoff time.Time) (n int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_logs", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT id, ip_address FROM audit_logs
		WHERE created_at < $1 AND NOT ip_anonymized AND ip_address <> ''`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("select audit logs to anonymize: %w", err)
	}
	pending := map[string]string{}
	for rows.Next() {
		var id, ip string
		if err := rows.Scan(&id, &ip); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan audit log: %w", err)
		}
		pending[id] = ip
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	for id, ip := range pending {
		if _, err = r.db.ExecContext(ctx, `UPDATE audit_logs SET ip_address = $2, ip_anonymized = TRUE WHERE id = $1`,
			id, AnonymizeIP(ip)); err != nil {
			return n, fmt.Errorf("anonymize audit log %s: %w", id, err)
		}
		n++
	}
	return n, nil
}
