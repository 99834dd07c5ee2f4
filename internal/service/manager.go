package service

import (
	"context"
	"log/slog"
	"time"

	"permctl/internal/domain"
)

// Manager is the sole entry point for ledger mutations. Every mutating
// request is validated, persisted, and then projected into the sudoers
// file before the call returns.
//
// The ledger mutation and the file rewrite are deliberately not one
// transaction: a rewrite failure after a durable commit is surfaced as
// a *domain.SyncError with LedgerMutated set, never rolled back and
// never swallowed as success.
type Manager struct {
	policies  domain.PolicySet
	validator *Validator
	repo      domain.PermissionRepository
	audit     domain.AuditRepository
	sync      domain.Synchronizer
	logger    *slog.Logger
}

// NewManager wires a Manager from its collaborators.
func NewManager(
	policies domain.PolicySet,
	validator *Validator,
	repo domain.PermissionRepository,
	audit domain.AuditRepository,
	sync domain.Synchronizer,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		policies:  policies,
		validator: validator,
		repo:      repo,
		audit:     audit,
		sync:      sync,
		logger:    logger,
	}
}

// Policies returns the immutable command whitelist.
func (m *Manager) Policies() domain.PolicySet { return m.policies }

// Grant validates the request, persists a new grant expiring after
// duration, and rewrites the sudoers file.
//
// When the rewrite fails after the insert committed, the grant is
// durable but not yet enforced: Grant returns the persisted grant
// together with a *domain.SyncError so the caller sees the partial
// success instead of a flat failure.
func (m *Manager) Grant(ctx context.Context, username, command string, duration time.Duration, grantedBy string) (*domain.PermissionGrant, error) {
	if err := m.validator.Validate(ctx, username, command, duration); err != nil {
		return nil, err
	}

	policy, ok := m.policies.Lookup(command)
	if !ok {
		return nil, &domain.CommandNotAllowedError{Command: command}
	}

	// The distinct-user cap is enforced inside the grant transaction so
	// two concurrent grants cannot both squeeze past the last slot.
	expiresAt := time.Now().Add(duration)
	grant, err := m.repo.Grant(ctx, username, command, expiresAt, grantedBy, policy.MaxConcurrentUsers)
	if err != nil {
		return nil, err
	}

	m.logger.Info("permission granted",
		"id", grant.ID, "user", username, "command", command,
		"expires", grant.ExpiresAt, "granted_by", grantedBy)

	if err := m.sync.Rewrite(ctx); err != nil {
		m.logger.Warn("grant persisted but sudoers rewrite failed",
			"id", grant.ID, "user", username, "command", command, "error", err)
		return grant, &domain.SyncError{Path: m.sync.Target(), LedgerMutated: true, Err: err}
	}

	return grant, nil
}

// Revoke marks the active grant for the pair revoked and rewrites the
// sudoers file. It reports whether a matching active grant existed; a
// false return performs no audit write and no rewrite.
//
// A rewrite failure after a committed revocation is the dangerous
// direction — the stale file still grants a privilege the ledger says
// is gone — so it comes back as a hard *domain.SyncError even though
// the ledger mutation succeeded (revoked is still true).
func (m *Manager) Revoke(ctx context.Context, username, command, revokedBy string) (bool, error) {
	revoked, err := m.repo.Revoke(ctx, username, command, revokedBy)
	if err != nil {
		return false, err
	}
	if !revoked {
		return false, nil
	}

	m.logger.Info("permission revoked", "user", username, "command", command, "revoked_by", revokedBy)

	if err := m.sync.Rewrite(ctx); err != nil {
		m.logger.Error("revocation persisted but sudoers rewrite failed; file still grants revoked privilege",
			"user", username, "command", command, "error", err)
		return true, &domain.SyncError{Path: m.sync.Target(), LedgerMutated: true, Err: err}
	}

	return true, nil
}

// Cleanup sweeps expired grants and rewrites the sudoers file when the
// sweep revoked anything. Like Revoke, a rewrite failure here leaves
// stale excess privilege in force and is a hard error.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	count, err := m.repo.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	m.logger.Info("expired grants swept", "count", count)

	if err := m.sync.Rewrite(ctx); err != nil {
		m.logger.Error("sweep persisted but sudoers rewrite failed; file still grants expired privileges",
			"count", count, "error", err)
		return count, &domain.SyncError{Path: m.sync.Target(), LedgerMutated: true, Err: err}
	}

	return count, nil
}

// RecordUsage stamps last_used and audits the use. Usage does not
// change the active set, so no rewrite is needed.
func (m *Manager) RecordUsage(ctx context.Context, username, command string) error {
	return m.repo.RecordUsage(ctx, username, command)
}

// CheckActive reports whether the pair holds an active grant.
func (m *Manager) CheckActive(ctx context.Context, username, command string) (bool, error) {
	return m.repo.CheckActive(ctx, username, command)
}

// ListActiveForUser returns the user's active grants, soonest-to-expire last.
func (m *Manager) ListActiveForUser(ctx context.Context, username string) ([]domain.PermissionGrant, error) {
	return m.repo.ListActiveForUser(ctx, username)
}

// ListForUser returns the user's full grant history, newest first.
func (m *Manager) ListForUser(ctx context.Context, username string) ([]domain.PermissionGrant, error) {
	return m.repo.ListForUser(ctx, username)
}

// ListAllActive returns every active grant in canonical order.
func (m *Manager) ListAllActive(ctx context.Context) ([]domain.PermissionGrant, error) {
	return m.repo.ListAllActive(ctx)
}

// AuditTrail lists audit entries newest first.
func (m *Manager) AuditTrail(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	return m.audit.List(ctx, filter)
}

// Synchronize forces a full sudoers rewrite from the current snapshot,
// independent of any mutation. Used at startup and by `permctl sync`.
func (m *Manager) Synchronize(ctx context.Context) error {
	if err := m.sync.Rewrite(ctx); err != nil {
		return &domain.SyncError{Path: m.sync.Target(), Err: err}
	}
	return nil
}
