package domain

import (
	"sort"
	"strings"
	"time"
)

// CommandPolicy describes one whitelisted command: what it is for, how
// long access may be granted, and who qualifies. Policies are loaded
// once at startup and immutable for the process lifetime.
type CommandPolicy struct {
	Description        string
	MaxDuration        time.Duration
	RequiredGroups     []string
	AuditUsage         bool
	MaxConcurrentUsers int
}

// PolicySet maps absolute command paths to their policies.
type PolicySet map[string]CommandPolicy

// Lookup returns the policy for a command path, if one exists.
func (p PolicySet) Lookup(command string) (CommandPolicy, bool) {
	pol, ok := p[command]
	return pol, ok
}

// Commands returns the whitelisted command paths in ascending order.
func (p PolicySet) Commands() []string {
	out := make([]string, 0, len(p))
	for cmd := range p {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Validate checks the structural rules every policy must satisfy.
func (p PolicySet) Validate() error {
	for cmd, pol := range p {
		if !strings.HasPrefix(cmd, "/") {
			return ErrValidation("command path must be absolute: %q", cmd)
		}
		if pol.MaxDuration <= 0 {
			return ErrValidation("max_duration must be positive for %q", cmd)
		}
		if pol.MaxConcurrentUsers < 1 {
			return ErrValidation("max_concurrent_users must be at least 1 for %q", cmd)
		}
	}
	return nil
}
