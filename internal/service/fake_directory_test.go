package service

import (
	"bytes"
	"context"
	"sync"
	"time"

	"trailhead/api/internal/models"
	"trailhead/api/internal/repository"
)

// fakeDirectory is an in-memory UserDirectory with the same atomicity
// guarantees as the SQL implementation: every mutation happens under
// one lock, so concurrent failure increments cannot lose updates.
type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]*models.User
	now   func() time.Time
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: make(map[string]*models.User),
		now:   time.Now,
	}
}

func (d *fakeDirectory) Create(_ context.Context, user models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Mirrors the unique email index, which sees deactivated rows too.
	for _, existing := range d.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	now := d.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	d.users[user.ID] = &user
	return nil
}

func (d *fakeDirectory) FindByEmail(_ context.Context, email string) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if user.Email == email && user.Active {
			return *user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (d *fakeDirectory) GetByID(_ context.Context, id string) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if user, ok := d.users[id]; ok {
		return *user, nil
	}
	return models.User{}, repository.ErrUserNotFound
}

func (d *fakeDirectory) List(_ context.Context) ([]models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var users []models.User
	for _, user := range d.users {
		if user.Active {
			users = append(users, *user)
		}
	}
	return users, nil
}

func (d *fakeDirectory) IncrementFailedLogins(_ context.Context, id string, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return 0, nil, repository.ErrUserNotFound
	}
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= threshold {
		until := d.now().Add(lockFor)
		user.LockUntil = &until
	}
	return user.FailedLoginAttempts, user.LockUntil, nil
}

func (d *fakeDirectory) ClearLockout(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.FailedLoginAttempts = 0
	user.LockUntil = nil
	return nil
}

func (d *fakeDirectory) SetResetToken(_ context.Context, id string, digest []byte, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.ResetTokenHash = digest
	user.ResetTokenExpiresAt = &expiresAt
	return nil
}

func (d *fakeDirectory) ClearResetToken(ctx context.Context, id string) error {
	// Observes cancellation like the SQL implementation would.
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.ResetTokenHash = nil
	user.ResetTokenExpiresAt = nil
	return nil
}

func (d *fakeDirectory) RedeemResetToken(_ context.Context, digest []byte, passwordHash []byte, changedAt time.Time) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if user.Active &&
			user.ResetTokenHash != nil &&
			bytes.Equal(user.ResetTokenHash, digest) &&
			user.ResetTokenExpiresAt != nil &&
			user.ResetTokenExpiresAt.After(d.now()) {
			user.PasswordHash = passwordHash
			user.PasswordChangedAt = &changedAt
			user.ResetTokenHash = nil
			user.ResetTokenExpiresAt = nil
			return *user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (d *fakeDirectory) UpdatePassword(_ context.Context, id string, passwordHash []byte, changedAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.PasswordChangedAt = &changedAt
	return nil
}

func (d *fakeDirectory) Deactivate(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Active = false
	return nil
}

// get returns the live record for assertions.
func (d *fakeDirectory) get(id string) models.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.users[id]
}

// fakeMailer records sends and can be told to fail, either with a
// fixed error or through a custom send hook.
type fakeMailer struct {
	mu       sync.Mutex
	sent     []sentMail
	failWith error
	sendFn   func(ctx context.Context, to, subject, body string) error
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, to, subject, body)
	}
	if m.failWith != nil {
		return m.failWith
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}
