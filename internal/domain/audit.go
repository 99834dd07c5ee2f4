package domain

import "time"

// AuditEntry represents a single audit trail record. Entries are
// append-only: they reference (username, command) by value so they
// outlive any particular grant row, and they are never mutated or
// deleted after insertion.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Username  string
	Command   string
	Action    string // "grant", "revoke", "use"
	Details   *string
}

// AuditFilter narrows an audit trail listing. Nil fields match everything.
type AuditFilter struct {
	Username *string
	Action   *string
	Limit    int
}
