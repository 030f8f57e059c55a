package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailhead/api/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

const userColumns = `
	id, name, email, password_hash, password_changed_at, role, photo,
	reset_token_hash, reset_token_expires_at, failed_login_attempts,
	lock_until, active, created_at, updated_at
`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.PasswordChangedAt,
		&user.Role,
		&user.Photo,
		&user.ResetTokenHash,
		&user.ResetTokenExpiresAt,
		&user.FailedLoginAttempts,
		&user.LockUntil,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, name, email, password_hash, role, photo, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Photo,
		user.Active,
	)
	if err != nil {
		// The unique index also covers deactivated accounts, which the
		// active-scoped duplicate pre-check cannot see.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// FindByEmail only sees active users. Deactivated accounts are
// invisible to login and password-reset flows.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users WHERE email = $1 AND active
	`

	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetByID is deliberately unscoped; the auth middleware checks the
// active flag itself after loading the record.
func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users WHERE id = $1
	`

	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users WHERE active
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// IncrementFailedLogins bumps the counter and, when the incremented
// value reaches threshold, sets lock_until in the same statement.
// Running the increment inside one UPDATE keeps concurrent failed
// attempts from losing updates to each other.
func (r *UserRepository) IncrementFailedLogins(ctx context.Context, id string, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	const query = `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    lock_until = CASE
		        WHEN failed_login_attempts + 1 >= $2
		        THEN NOW() + make_interval(secs => $3)
		        ELSE lock_until
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts, lock_until
	`

	var count int
	var lockUntil *time.Time
	err := r.pool.QueryRow(ctx, query, id, threshold, lockFor.Seconds()).Scan(&count, &lockUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, ErrUserNotFound
		}
		return 0, nil, err
	}
	return count, lockUntil, nil
}

func (r *UserRepository) ClearLockout(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET failed_login_attempts = 0, lock_until = NULL, updated_at = NOW()
		WHERE id = $1
	`

	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetResetToken overwrites any outstanding reset token.
func (r *UserRepository) SetResetToken(ctx context.Context, id string, digest []byte, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	cmd, err := r.pool.Exec(ctx, query, id, digest, expiresAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// RedeemResetToken applies the new password and clears the reset
// fields in one statement, matching only an unexpired digest on an
// active user. A token can therefore never be redeemed twice: the
// first redemption removes the digest the second one matches on.
func (r *UserRepository) RedeemResetToken(ctx context.Context, digest []byte, passwordHash []byte, changedAt time.Time) (models.User, error) {
	const query = `
		UPDATE users
		SET password_hash = $2,
		    password_changed_at = $3,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    updated_at = NOW()
		WHERE reset_token_hash = $1
		  AND reset_token_expires_at > NOW()
		  AND active
		RETURNING ` + userColumns + `
	`

	return scanUser(r.pool.QueryRow(ctx, query, digest, passwordHash, changedAt))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash []byte, changedAt time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $2, password_changed_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	cmd, err := r.pool.Exec(ctx, query, id, passwordHash, changedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	const query = `
		UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1
	`

	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
