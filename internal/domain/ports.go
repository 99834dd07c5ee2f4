package domain

import (
	"context"
	"time"
)

// PermissionRepository is the durable ledger of grants. Implemented by
// repository.PermissionRepo on SQLite.
type PermissionRepository interface {
	// Grant inserts a new active grant. An existing active grant for the
	// same (username, command) pair is superseded in the same transaction:
	// the old row is marked revoked by grantedBy, the new row carries a
	// fresh ID, and both events land in the audit trail.
	//
	// maxConcurrent > 0 caps the distinct users holding an active grant
	// for the command. The count runs inside the same transaction as the
	// insert, so concurrent grants cannot race past the cap; a user who
	// already holds an active grant does not count against it. A grant
	// over the cap fails with *ConcurrencyLimitError and no row.
	Grant(ctx context.Context, username, command string, expiresAt time.Time, grantedBy string, maxConcurrent int) (*PermissionGrant, error)

	// Revoke marks the active grant for the pair revoked. It reports
	// whether a matching active grant existed; the audit entry is written
	// only when one did.
	Revoke(ctx context.Context, username, command, revokedBy string) (bool, error)

	// CheckActive reports whether an unrevoked, unexpired grant exists.
	CheckActive(ctx context.Context, username, command string) (bool, error)

	// RecordUsage updates last_used on the active grant for the pair
	// (no-op without one) and appends a "use" audit entry.
	RecordUsage(ctx context.Context, username, command string) error

	// ListActiveForUser returns the user's active grants ordered by
	// expiry descending (soonest to expire last).
	ListActiveForUser(ctx context.Context, username string) ([]PermissionGrant, error)

	// ListForUser returns all of a user's grants, including revoked and
	// expired ones, newest first.
	ListForUser(ctx context.Context, username string) ([]PermissionGrant, error)

	// ListAllActive returns every active grant ordered by (username,
	// command) ascending. This ordering is the canonical input to the
	// sudoers renderer and must stay deterministic.
	ListAllActive(ctx context.Context) ([]PermissionGrant, error)

	// SweepExpired marks every unrevoked grant past its expiry as revoked
	// by the reserved system actor and returns the number affected.
	SweepExpired(ctx context.Context) (int64, error)
}

// AuditRepository is the append-only audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// IdentityOracle answers the two identity questions the validator needs.
// Backed by external process invocation in production; tests substitute
// a deterministic double. Implementations must distinguish a definitive
// "no" from a failed lookup (*LookupError).
type IdentityOracle interface {
	UserExists(ctx context.Context, username string) (bool, error)
	UserInGroup(ctx context.Context, username, group string) (bool, error)
}

// Synchronizer projects the ledger's active-grant snapshot into the
// OS-enforced sudoers file. Implemented by sudoers.Synchronizer.
type Synchronizer interface {
	// Rewrite recomputes the entire target file from the current
	// active-grant snapshot. Never patches incrementally.
	Rewrite(ctx context.Context) error
	// Target returns the absolute path of the managed file.
	Target() string
}
