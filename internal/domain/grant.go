package domain

import "time"

// Audit actions recorded in the audit trail.
const (
	ActionGrant  = "grant"
	ActionRevoke = "revoke"
	ActionUse    = "use"
)

// SystemActor is the reserved identity used when the expiry sweep
// revokes a grant. It cannot collide with a real username because
// usernames never contain a colon.
const SystemActor = "system:cleanup"

// PermissionGrant represents one granted privilege: a user may run a
// whitelisted command with elevated rights until the grant expires or
// is revoked. Rows are never deleted; a revoked or expired grant stays
// in the ledger as the audit record of the privilege it once conferred.
type PermissionGrant struct {
	ID        string
	Username  string
	Command   string // absolute path
	GrantedAt time.Time
	ExpiresAt time.Time
	GrantedBy string
	LastUsed  *time.Time
	Revoked   bool
	RevokedAt *time.Time
	RevokedBy *string
}

// Active reports whether the grant confers privilege at the given instant.
func (g *PermissionGrant) Active(now time.Time) bool {
	return !g.Revoked && g.ExpiresAt.After(now)
}
