// Package identity answers user and group membership questions by
// invoking the OS identity tools. Lookups are bounded by a timeout so a
// hung NSS backend (LDAP, SSSD) cannot stall a grant indefinitely.
package identity

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"permctl/internal/domain"
)

// getent exits 2 when the requested key does not exist in the database.
const getentKeyNotFound = 2

var _ domain.IdentityOracle = (*ExecOracle)(nil)

// ExecOracle resolves identity predicates through getent(1) and id(1).
// A failed process invocation is reported as a *domain.LookupError and
// never collapsed into a boolean answer: a broken lookup must not read
// as "user not found", nor silently allow a grant past a group check.
type ExecOracle struct {
	timeout time.Duration
}

// NewExecOracle creates an ExecOracle. timeout bounds each external
// process call; zero selects a 10 second default.
func NewExecOracle(timeout time.Duration) *ExecOracle {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExecOracle{timeout: timeout}
}

// UserExists reports whether the user is known to the system. getent's
// exit status distinguishes "key not found" (definitive no) from every
// other failure mode, which surfaces as a LookupError.
func (o *ExecOracle) UserExists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	err := exec.CommandContext(ctx, "getent", "passwd", "--", username).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == getentKeyNotFound {
		return false, nil
	}
	return false, &domain.LookupError{Cmd: "getent passwd " + username, Err: err}
}

// UserInGroup reports whether the user is a member of the group,
// including membership through the user's primary group.
func (o *ExecOracle) UserInGroup(ctx context.Context, username, group string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, "id", "-Gn", "--", username).Output()
	if err != nil {
		return false, &domain.LookupError{Cmd: "id -Gn " + username, Err: err}
	}
	return memberOf(string(output), group), nil
}

// memberOf scans id(1) output ("wheel docker users") for an exact
// group name match.
func memberOf(output, group string) bool {
	for _, g := range strings.Fields(output) {
		if g == group {
			return true
		}
	}
	return false
}
