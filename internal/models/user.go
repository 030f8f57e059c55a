package models

import "time"

type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleGuide     UserRole = "guide"
	UserRoleLeadGuide UserRole = "lead-guide"
	UserRoleAdmin     UserRole = "admin"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role UserRole) bool {
	switch role {
	case UserRoleUser, UserRoleGuide, UserRoleLeadGuide, UserRoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                  string
	Name                string
	Email               string
	PasswordHash        []byte
	PasswordChangedAt   *time.Time
	Role                UserRole
	Photo               *string
	ResetTokenHash      []byte
	ResetTokenExpiresAt *time.Time
	FailedLoginAttempts int
	LockUntil           *time.Time
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether the account is currently locked out.
// An expired lock_until is treated as open; the field itself is only
// cleared by the next successful login.
func (u User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// PasswordChangedAfter reports whether the password was changed after
// the given token issue time. Users that never changed their password
// always return false.
func (u User) PasswordChangedAfter(issuedAt time.Time) bool {
	return u.PasswordChangedAt != nil && u.PasswordChangedAt.After(issuedAt)
}
