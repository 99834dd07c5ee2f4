// Package service implements grant validation, orchestration, and the
// scheduled expiry sweep.
package service

import (
	"context"
	"time"

	"permctl/internal/domain"
)

// Validator gates a grant request against the command policy and the
// identity oracle. It is read-only: no check here has side effects, so
// a rejected request leaves no trace in the ledger.
type Validator struct {
	policies domain.PolicySet
	oracle   domain.IdentityOracle
}

// NewValidator creates a Validator.
func NewValidator(policies domain.PolicySet, oracle domain.IdentityOracle) *Validator {
	return &Validator{policies: policies, oracle: oracle}
}

// Validate runs the checks in order, short-circuiting on the first
// failure: command whitelisted, duration within policy, user exists,
// user in every required group. Oracle transport failures propagate as
// *domain.LookupError — a lookup outage is neither a denial nor an
// approval.
func (v *Validator) Validate(ctx context.Context, username, command string, duration time.Duration) error {
	policy, ok := v.policies.Lookup(command)
	if !ok {
		return &domain.CommandNotAllowedError{Command: command}
	}

	if duration <= 0 || duration > policy.MaxDuration {
		return &domain.InvalidDurationError{Command: command, Duration: duration, Max: policy.MaxDuration}
	}

	exists, err := v.oracle.UserExists(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.UserNotFoundError{Username: username}
	}

	for _, group := range policy.RequiredGroups {
		member, err := v.oracle.UserInGroup(ctx, username, group)
		if err != nil {
			return err
		}
		if !member {
			return &domain.GroupMembershipError{Username: username, Group: group}
		}
	}

	return nil
}
