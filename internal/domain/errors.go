// Package domain defines core types, interfaces, and errors for permctl.
package domain

import (
	"fmt"
	"time"
)

// ValidationError indicates invalid input: the caller must change the
// request, retrying will not help.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CommandNotAllowedError indicates the command is not in the policy whitelist.
type CommandNotAllowedError struct {
	Command string
}

func (e *CommandNotAllowedError) Error() string {
	return fmt.Sprintf("command not allowed: %s", e.Command)
}

// InvalidDurationError indicates a non-positive duration or one exceeding
// the policy maximum for the command.
type InvalidDurationError struct {
	Command  string
	Duration time.Duration
	Max      time.Duration
}

func (e *InvalidDurationError) Error() string {
	if e.Duration <= 0 {
		return fmt.Sprintf("invalid duration %s: must be positive", e.Duration)
	}
	return fmt.Sprintf("invalid duration %s: exceeds maximum %s for %s", e.Duration, e.Max, e.Command)
}

// UserNotFoundError indicates the named user does not exist on the system.
type UserNotFoundError struct {
	Username string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user not found: %s", e.Username)
}

// GroupMembershipError indicates the user is missing a required group.
// Only the first unmet group is reported.
type GroupMembershipError struct {
	Username string
	Group    string
}

func (e *GroupMembershipError) Error() string {
	return fmt.Sprintf("user %s is not a member of required group %s", e.Username, e.Group)
}

// ConcurrencyLimitError indicates the command already has the maximum
// number of distinct active users allowed by its policy.
type ConcurrencyLimitError struct {
	Command string
	Limit   int
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("command %s already has %d concurrent users", e.Command, e.Limit)
}

// StorageError indicates a ledger engine failure. Transient: a retry may
// succeed once the writer lock or the underlying I/O recovers.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// LookupError indicates the external identity lookup itself failed, as
// opposed to returning a definitive answer. A lookup outage must never
// be collapsed into "user not found" or "not a member".
type LookupError struct {
	Cmd string
	Err error
}

func (e *LookupError) Error() string { return fmt.Sprintf("identity lookup %s: %v", e.Cmd, e.Err) }
func (e *LookupError) Unwrap() error { return e.Err }

// SyncError indicates the sudoers projection could not be rewritten.
// When LedgerMutated is true the ledger change committed before the
// rewrite failed: the grant set and the OS-enforced file are known to
// diverge until the next successful rewrite.
type SyncError struct {
	Path          string
	LedgerMutated bool
	Err           error
}

func (e *SyncError) Error() string {
	if e.LedgerMutated {
		return fmt.Sprintf("sudoers sync %s failed after ledger commit: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("sudoers sync %s: %v", e.Path, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
