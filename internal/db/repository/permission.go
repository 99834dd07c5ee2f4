package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"permctl/internal/domain"
)

var _ domain.PermissionRepository = (*PermissionRepo)(nil)

const grantColumns = `id, username, command, granted_at, expires_at, granted_by,
       last_used, revoked, revoked_at, revoked_by`

// PermissionRepo stores permission grants in SQLite. Mutations run on
// the write pool (single connection, immediate transactions); snapshot
// reads may use a separate read pool so they never queue behind a writer.
type PermissionRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewPermissionRepo creates a PermissionRepo over a write and a read
// pool for the same ledger file. Passing the same handle twice is fine
// for tests and single-shot invocations.
func NewPermissionRepo(write, read *sql.DB) *PermissionRepo {
	return &PermissionRepo{write: write, read: read}
}

// Grant inserts a new active grant inside one transaction. Any unrevoked
// row for the same (username, command) pair is superseded first: marked
// revoked by the granting actor, with an audit detail tying it to the
// replacement. The superseded row keeps its own identity in the ledger.
//
// The maxConcurrent cap is checked inside the same transaction. Write
// transactions take the lock immediately on the single write connection,
// so two grants racing for the last slot serialize here and the second
// one sees the first one's row.
func (r *PermissionRepo) Grant(ctx context.Context, username, command string, expiresAt time.Time, grantedBy string, maxConcurrent int) (*domain.PermissionGrant, error) {
	now := time.Now().UTC()
	id := domain.NewID()

	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin grant", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var priorID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM permission_grants
		WHERE username = ? AND command = ? AND revoked = 0
	`, username, command).Scan(&priorID)
	if err != nil && err != sql.ErrNoRows {
		return nil, storageErr("find prior grant", err)
	}

	if maxConcurrent > 0 {
		// Distinct active holders other than the requester: an existing
		// holder re-granting cannot raise the distinct-user count.
		var others int64
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(DISTINCT username) FROM permission_grants
			WHERE command = ? AND username != ? AND revoked = 0 AND expires_at > ?
		`, command, username, now).Scan(&others)
		if err != nil {
			return nil, storageErr("count active users", err)
		}
		if others >= int64(maxConcurrent) {
			return nil, &domain.ConcurrencyLimitError{Command: command, Limit: maxConcurrent}
		}
	}

	if priorID != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE permission_grants
			SET revoked = 1, revoked_at = ?, revoked_by = ?
			WHERE id = ?
		`, now, grantedBy, priorID)
		if err != nil {
			return nil, storageErr("supersede grant", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO permission_grants (id, username, command, granted_at, expires_at, granted_by, revoked)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, id, username, command, now, expiresAt.UTC(), grantedBy)
	if err != nil {
		return nil, storageErr("insert grant", err)
	}

	details := fmt.Sprintf("granted by %s until %s", grantedBy, expiresAt.UTC().Format(time.RFC3339))
	if priorID != "" {
		details += fmt.Sprintf("; supersedes %s", priorID)
	}
	if err := insertAudit(ctx, tx, now, username, command, domain.ActionGrant, &details); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit grant", err)
	}

	return &domain.PermissionGrant{
		ID:        id,
		Username:  username,
		Command:   command,
		GrantedAt: now,
		ExpiresAt: expiresAt.UTC(),
		GrantedBy: grantedBy,
	}, nil
}

// Revoke marks the active grant for the pair revoked. The audit entry is
// written only when a row actually changed, in the same transaction.
func (r *PermissionRepo) Revoke(ctx context.Context, username, command, revokedBy string) (bool, error) {
	now := time.Now().UTC()

	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return false, storageErr("begin revoke", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE permission_grants
		SET revoked = 1, revoked_at = ?, revoked_by = ?
		WHERE username = ? AND command = ? AND revoked = 0 AND expires_at > ?
	`, now, revokedBy, username, command, now)
	if err != nil {
		return false, storageErr("revoke grant", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("revoke rows affected", err)
	}
	if n == 0 {
		return false, nil
	}

	details := fmt.Sprintf("revoked by %s", revokedBy)
	if err := insertAudit(ctx, tx, now, username, command, domain.ActionRevoke, &details); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, storageErr("commit revoke", err)
	}
	return true, nil
}

// CheckActive reports whether an unrevoked, unexpired grant exists.
func (r *PermissionRepo) CheckActive(ctx context.Context, username, command string) (bool, error) {
	var n int64
	err := r.read.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM permission_grants
		WHERE username = ? AND command = ? AND revoked = 0 AND expires_at > ?
	`, username, command, time.Now().UTC()).Scan(&n)
	if err != nil {
		return false, storageErr("check active", err)
	}
	return n > 0, nil
}

// RecordUsage stamps last_used on the active grant for the pair and
// appends a "use" audit entry. The entry is written even without an
// active grant: an attempted use of a privilege the ledger does not
// confer is exactly what the trail exists to show.
func (r *PermissionRepo) RecordUsage(ctx context.Context, username, command string) error {
	now := time.Now().UTC()

	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin record usage", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE permission_grants
		SET last_used = ?
		WHERE username = ? AND command = ? AND revoked = 0 AND expires_at > ?
	`, now, username, command, now)
	if err != nil {
		return storageErr("record usage", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("record usage rows affected", err)
	}

	var details *string
	if n == 0 {
		d := "no active grant"
		details = &d
	}
	if err := insertAudit(ctx, tx, now, username, command, domain.ActionUse, details); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit record usage", err)
	}
	return nil
}

// ListActiveForUser returns the user's active grants ordered by expiry
// descending, so the grant expiring soonest prints last.
func (r *PermissionRepo) ListActiveForUser(ctx context.Context, username string) ([]domain.PermissionGrant, error) {
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM permission_grants
		WHERE username = ? AND revoked = 0 AND expires_at > ?
		ORDER BY expires_at DESC
	`, username, time.Now().UTC())
}

// ListForUser returns all of a user's grants, newest first, including
// revoked and expired rows.
func (r *PermissionRepo) ListForUser(ctx context.Context, username string) ([]domain.PermissionGrant, error) {
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM permission_grants
		WHERE username = ?
		ORDER BY granted_at DESC, id DESC
	`, username)
}

// ListAllActive returns every active grant ordered by (username, command)
// ascending. The sudoers renderer depends on this ordering for
// byte-stable output; do not change it.
func (r *PermissionRepo) ListAllActive(ctx context.Context) ([]domain.PermissionGrant, error) {
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM permission_grants
		WHERE revoked = 0 AND expires_at > ?
		ORDER BY username ASC, command ASC
	`, time.Now().UTC())
}

// SweepExpired revokes every unrevoked grant whose expiry has passed,
// attributing the revocation to the reserved system actor, and writes
// one audit entry per swept grant. The whole sweep is one transaction.
func (r *PermissionRepo) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()

	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin sweep", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT username, command, expires_at FROM permission_grants
		WHERE revoked = 0 AND expires_at <= ?
	`, now)
	if err != nil {
		return 0, storageErr("select expired", err)
	}
	type expired struct {
		username  string
		command   string
		expiresAt time.Time
	}
	var swept []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.username, &e.command, &e.expiresAt); err != nil {
			rows.Close()
			return 0, storageErr("scan expired", err)
		}
		swept = append(swept, e)
	}
	if err := rows.Close(); err != nil {
		return 0, storageErr("close expired rows", err)
	}

	if len(swept) == 0 {
		return 0, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE permission_grants
		SET revoked = 1, revoked_at = ?, revoked_by = ?
		WHERE revoked = 0 AND expires_at <= ?
	`, now, domain.SystemActor, now)
	if err != nil {
		return 0, storageErr("sweep expired", err)
	}

	for _, e := range swept {
		details := fmt.Sprintf("expired %s, revoked by %s", e.expiresAt.UTC().Format(time.RFC3339), domain.SystemActor)
		if err := insertAudit(ctx, tx, now, e.username, e.command, domain.ActionRevoke, &details); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit sweep", err)
	}
	return int64(len(swept)), nil
}

func (r *PermissionRepo) list(ctx context.Context, stmt string, args ...interface{}) ([]domain.PermissionGrant, error) {
	rows, err := r.read.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, storageErr("list grants", err)
	}
	defer rows.Close() //nolint:errcheck

	var grants []domain.PermissionGrant
	for rows.Next() {
		var (
			g         domain.PermissionGrant
			lastUsed  sql.NullTime
			revoked   int64
			revokedAt sql.NullTime
			revokedBy sql.NullString
		)
		err := rows.Scan(
			&g.ID,
			&g.Username,
			&g.Command,
			&g.GrantedAt,
			&g.ExpiresAt,
			&g.GrantedBy,
			&lastUsed,
			&revoked,
			&revokedAt,
			&revokedBy,
		)
		if err != nil {
			return nil, storageErr("scan grant", err)
		}
		g.Revoked = revoked != 0
		if lastUsed.Valid {
			t := lastUsed.Time
			g.LastUsed = &t
		}
		if revokedAt.Valid {
			t := revokedAt.Time
			g.RevokedAt = &t
		}
		if revokedBy.Valid {
			s := revokedBy.String
			g.RevokedBy = &s
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate grants", err)
	}
	return grants, nil
}

// insertAudit appends an audit entry inside the caller's transaction so
// a ledger mutation and its trail entry commit or roll back together.
func insertAudit(ctx context.Context, tx *sql.Tx, ts time.Time, username, command, action string, details *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, username, command, action, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, domain.NewID(), ts, username, command, action, nullStr(details))
	if err != nil {
		return storageErr("insert audit entry", err)
	}
	return nil
}
