package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailhead/api/internal/ids"
	"trailhead/api/internal/models"
)

func newLockoutFixture(t *testing.T) (*LockoutPolicy, *fakeDirectory, string) {
	t.Helper()

	directory := newFakeDirectory()
	policy := NewLockoutPolicy(directory, testThreshold, testLockFor)

	userID := ids.New()
	require.NoError(t, directory.Create(context.Background(), models.User{
		ID:     userID,
		Email:  "locked@example.com",
		Role:   models.UserRoleUser,
		Active: true,
	}))

	return policy, directory, userID
}

func TestLockoutPolicy_OpenBelowThreshold(t *testing.T) {
	t.Parallel()
	policy, directory, userID := newLockoutFixture(t)
	ctx := context.Background()

	for i := 0; i < testThreshold-1; i++ {
		require.NoError(t, policy.RecordFailure(ctx, userID))
	}

	user := directory.get(userID)
	assert.Equal(t, testThreshold-1, user.FailedLoginAttempts)
	assert.Nil(t, user.LockUntil)
	assert.False(t, policy.IsLocked(user, time.Now()))
}

func TestLockoutPolicy_LocksAtThreshold(t *testing.T) {
	t.Parallel()
	policy, directory, userID := newLockoutFixture(t)
	ctx := context.Background()

	for i := 0; i < testThreshold; i++ {
		require.NoError(t, policy.RecordFailure(ctx, userID))
	}

	user := directory.get(userID)
	require.NotNil(t, user.LockUntil)
	assert.True(t, policy.IsLocked(user, time.Now()))
	assert.False(t, user.LockUntil.Before(time.Now()), "lock_until must not precede the locking attempt")
}

func TestLockoutPolicy_LazyExpiry(t *testing.T) {
	t.Parallel()
	policy, directory, userID := newLockoutFixture(t)
	ctx := context.Background()

	for i := 0; i < testThreshold; i++ {
		require.NoError(t, policy.RecordFailure(ctx, userID))
	}

	user := directory.get(userID)
	// Reading past the window reports open, but the field survives.
	afterWindow := user.LockUntil.Add(time.Second)
	assert.False(t, policy.IsLocked(user, afterWindow))
	assert.NotNil(t, directory.get(userID).LockUntil)
}

func TestLockoutPolicy_SuccessResets(t *testing.T) {
	t.Parallel()
	policy, directory, userID := newLockoutFixture(t)
	ctx := context.Background()

	for i := 0; i < testThreshold; i++ {
		require.NoError(t, policy.RecordFailure(ctx, userID))
	}

	require.NoError(t, policy.RecordSuccess(ctx, userID))

	user := directory.get(userID)
	assert.Equal(t, 0, user.FailedLoginAttempts)
	assert.Nil(t, user.LockUntil)
	assert.False(t, policy.IsLocked(user, time.Now()))
}

func TestLockoutPolicy_ConcurrentFailures(t *testing.T) {
	t.Parallel()
	policy, directory, userID := newLockoutFixture(t)
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_ = policy.RecordFailure(ctx, userID)
		}()
	}
	wg.Wait()

	user := directory.get(userID)
	assert.Equal(t, attempts, user.FailedLoginAttempts, "final counter must equal the number of attempts, not less")
	assert.True(t, policy.IsLocked(user, time.Now()))
}
