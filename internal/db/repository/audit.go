package repository

import (
	"context"
	"database/sql"
	"time"

	"permctl/internal/domain"
)

var _ domain.AuditRepository = (*AuditRepo)(nil)

// AuditRepo reads and appends the append-only audit trail. Entries are
// never updated or deleted; there is deliberately no method for either.
type AuditRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewAuditRepo creates an AuditRepo over the ledger pools.
func NewAuditRepo(write, read *sql.DB) *AuditRepo {
	return &AuditRepo{write: write, read: read}
}

// Insert appends one audit entry.
func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = domain.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := r.write.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, username, command, action, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Timestamp.UTC(), e.Username, e.Command, e.Action, nullStr(e.Details))
	if err != nil {
		return storageErr("insert audit entry", err)
	}
	return nil
}

// List returns audit entries newest first, narrowed by the filter.
func (r *AuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	stmt := `
		SELECT id, timestamp, username, command, action, details
		FROM audit_log
		WHERE (? IS NULL OR username = ?)
		  AND (? IS NULL OR action = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`
	rows, err := r.read.QueryContext(ctx, stmt,
		nullableValue(filter.Username), nullableValue(filter.Username),
		nullableValue(filter.Action), nullableValue(filter.Action),
		limit,
	)
	if err != nil {
		return nil, storageErr("list audit entries", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e       domain.AuditEntry
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Username, &e.Command, &e.Action, &details); err != nil {
			return nil, storageErr("scan audit entry", err)
		}
		if details.Valid {
			s := details.String
			e.Details = &s
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate audit entries", err)
	}
	return entries, nil
}

func nullableValue(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
