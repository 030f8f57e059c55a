package service

import (
	"context"
	"time"

	"trailhead/api/internal/models"
)

// UserDirectory is the persistence surface the auth flows depend on.
// It is the single source of truth for user state; nothing is cached
// across requests. Lookups are scoped to active users except GetByID,
// which the middleware uses and filters itself.
type UserDirectory interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)

	// IncrementFailedLogins must be atomic at the store: the increment
	// and the threshold comparison happen in one conditional update.
	IncrementFailedLogins(ctx context.Context, id string, threshold int, lockFor time.Duration) (int, *time.Time, error)
	ClearLockout(ctx context.Context, id string) error

	SetResetToken(ctx context.Context, id string, digest []byte, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	RedeemResetToken(ctx context.Context, digest []byte, passwordHash []byte, changedAt time.Time) (models.User, error)

	UpdatePassword(ctx context.Context, id string, passwordHash []byte, changedAt time.Time) error
	Deactivate(ctx context.Context, id string) error
}
