package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/notify"
)

// DBTX abstracts the database access layer. It is implemented by both
// *sql.DB and *sql.Tx, so store code works inside or outside a
// transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// appendRetries bounds the sequence-collision retry loop in Append.
// Collisions only happen when two writers share a tenant, which the
// store contract forbids, so one retry is normally plenty.
const appendRetries = 3

// NotificationStore implements notify.Store on PostgreSQL. The next
// per-tenant sequence ID is computed inside the INSERT itself, and the
// (tenant_id, sequence_id) primary key turns any race into a unique
// violation instead of a duplicate ID.
type NotificationStore struct {
	db DBTX
}

var _ notify.Store = (*NotificationStore)(nil)

// NewNotificationStore creates a NotificationStore backed by db.
func NewNotificationStore(db DBTX) *NotificationStore {
	return &NotificationStore{db: db}
}

// Append writes the record with the tenant's next sequence ID and
// returns that ID.
func (s *NotificationStore) Append(
	ctx context.Context,
	tenantID string,
	rec domain.NotificationRecord,
) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, errors.Join(notify.ErrInvalidRecord, err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notifications (tenant_id, sequence_id, task_id, status, result, error, created_at)
		SELECT $1, COALESCE(MAX(sequence_id), 0) + 1, $2, $3, $4, $5, $6
		FROM notifications
		WHERE tenant_id = $1
		RETURNING sequence_id
	`

	var result any
	if len(rec.Result) > 0 {
		result = []byte(rec.Result)
	}
	var errMsg any
	if rec.Error != "" {
		errMsg = rec.Error
	}

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		var seq int64
		err := s.db.QueryRowContext(ctx, query,
			tenantID,
			rec.TaskID,
			rec.Status,
			result,
			errMsg,
			createdAt,
		).Scan(&seq)
		if err == nil {
			return seq, nil
		}
		if !IsUniqueViolation(err) {
			return 0, fmt.Errorf("failed to append notification record: %w", MapError(err))
		}
		lastErr = err
	}
	return 0, fmt.Errorf("sequence contention appending notification record: %w", MapError(lastErr))
}

// Since returns all records with sequence ID greater than sinceID, in
// sequence order.
func (s *NotificationStore) Since(
	ctx context.Context,
	tenantID string,
	sinceID int64,
) ([]domain.NotificationRecord, error) {
	query := `
		SELECT sequence_id, task_id, status, result, error, created_at
		FROM notifications
		WHERE tenant_id = $1 AND sequence_id > $2
		ORDER BY sequence_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, sinceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification records: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var records []domain.NotificationRecord
	for rows.Next() {
		var (
			rec    domain.NotificationRecord
			result []byte
			errMsg sql.NullString
		)
		if err := rows.Scan(
			&rec.SequenceID,
			&rec.TaskID,
			&rec.Status,
			&result,
			&errMsg,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification record: %w", MapError(err))
		}
		rec.Result = result
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notification records: %w", MapError(err))
	}
	return records, nil
}

// Purge removes records created before the cutoff, returning how many
// were removed. Sequence IDs are never reused: the per-tenant MAX is
// taken over live rows, so purging the tail would reset it. The delete
// therefore always retains each tenant's newest record.
func (s *NotificationStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM notifications n
		WHERE n.created_at < $1
		  AND n.sequence_id < (
			SELECT MAX(m.sequence_id) FROM notifications m
			WHERE m.tenant_id = n.tenant_id
		  )
	`

	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notification records: %w", MapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged records: %w", MapError(err))
	}
	return n, nil
}
