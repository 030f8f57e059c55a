package service

import (
	"context"
	"time"

	"trailhead/api/internal/models"
)

// LockoutPolicy tracks failed-attempt counters and lock windows per
// account. All mutation goes through the directory's atomic updates;
// the policy itself holds only immutable configuration.
type LockoutPolicy struct {
	directory UserDirectory
	threshold int
	lockFor   time.Duration
}

func NewLockoutPolicy(directory UserDirectory, threshold int, lockFor time.Duration) *LockoutPolicy {
	return &LockoutPolicy{
		directory: directory,
		threshold: threshold,
		lockFor:   lockFor,
	}
}

// IsLocked is a pure read. An expired lock window counts as open but
// the field is left in place; only RecordSuccess clears it.
func (p *LockoutPolicy) IsLocked(user models.User, now time.Time) bool {
	return user.IsLocked(now)
}

// RecordFailure registers one failed login attempt. Reaching the
// threshold sets the lock window in the same store round-trip.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, userID string) error {
	_, _, err := p.directory.IncrementFailedLogins(ctx, userID, p.threshold, p.lockFor)
	return err
}

// RecordSuccess resets the counter and clears any lock window.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, userID string) error {
	return p.directory.ClearLockout(ctx, userID)
}
