/**
 * @description
 * This file provides the PostgreSQL implementation of the `AuditRepository`
 * interface on top of a pgx connection pool.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidAuditEntry = errors.New("invalid audit entry")

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxDetailLength     = 1000
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cancellation_audit (
	id          BIGSERIAL PRIMARY KEY,
	view_id     TEXT,
	subject     TEXT NOT NULL,
	booking_id  TEXT NOT NULL,
	event       TEXT NOT NULL,
	state       TEXT,
	detail      TEXT,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS cancellation_audit_booking_subject_idx
	ON cancellation_audit (booking_id, subject, occurred_at DESC);
`

// PostgresRepository is the PostgreSQL implementation of AuditRepository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// Record inserts one audit entry.
func (r *PostgresRepository) Record(ctx context.Context, entry AuditEntry) error {
	entry, err := normalizeEntry(entry, time.Now())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cancellation_audit (view_id, subject, booking_id, event, state, detail, occurred_at)
		VALUES (NULLIF($1, ''), $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)`
	_, err = r.db.Exec(ctx, query,
		entry.ViewID,
		entry.Subject,
		entry.BookingID,
		string(entry.Event),
		entry.State,
		entry.Detail,
		entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListByBooking returns the newest entries for bookingID recorded on behalf of subject.
func (r *PostgresRepository) ListByBooking(ctx context.Context, bookingID, subject string, limit int) ([]AuditEntry, error) {
	query := `
		SELECT id, COALESCE(view_id, ''), subject, booking_id, event, COALESCE(state, ''), COALESCE(detail, ''), occurred_at
		FROM cancellation_audit
		WHERE booking_id = $1 AND subject = $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT $3`
	rows, err := r.db.Query(ctx, query, strings.TrimSpace(bookingID), subject, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditEntry, error) {
		var entry AuditEntry
		var event string
		err := row.Scan(&entry.ID, &entry.ViewID, &entry.Subject, &entry.BookingID, &event, &entry.State, &entry.Detail, &entry.OccurredAt)
		entry.Event = AuditEvent(event)
		return entry, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entries: %w", err)
	}
	return entries, nil
}

func normalizeEntry(entry AuditEntry, now time.Time) (AuditEntry, error) {
	entry.BookingID = strings.TrimSpace(entry.BookingID)
	entry.Subject = strings.TrimSpace(entry.Subject)
	if entry.BookingID == "" || entry.Subject == "" || entry.Event == "" {
		return entry, ErrInvalidAuditEntry
	}
	entry.Detail = strings.TrimSpace(entry.Detail)
	if len(entry.Detail) > maxDetailLength {
		entry.Detail = entry.Detail[:maxDetailLength]
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = now
	}
	entry.OccurredAt = entry.OccurredAt.UTC()
	return entry, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
