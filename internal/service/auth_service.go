package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trailhead/api/internal/apperr"
	"trailhead/api/internal/ids"
	"trailhead/api/internal/mailer"
	"trailhead/api/internal/models"
	"trailhead/api/internal/repository"
	"trailhead/api/internal/security"
)

const (
	nameMinLen     = 1
	nameMaxLen     = 20
	passwordMinLen = 8
	passwordMaxLen = 40

	// A freshly issued token carries iat == now; stamping the change a
	// second in the past keeps that token on the issued-after side of
	// the PasswordChangedAfter check.
	passwordChangedAtSkew = time.Second
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type AuthService struct {
	directory UserDirectory
	tokens    *security.TokenService
	lockout   *LockoutPolicy
	mail      mailer.Mailer
	resetTTL  time.Duration
	log       zerolog.Logger

	// dummyHash is compared against when the email is unknown so both
	// failure paths cost one full hash verification.
	dummyHash []byte

	// now is swappable in tests.
	now func() time.Time
}

func NewAuthService(
	directory UserDirectory,
	tokens *security.TokenService,
	lockout *LockoutPolicy,
	mail mailer.Mailer,
	resetTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	dummyHash, _ := security.HashPassword(ids.New())

	return &AuthService{
		directory: directory,
		dummyHash: dummyHash,
		tokens:    tokens,
		lockout:   lockout,
		mail:      mail,
		resetTTL:  resetTTL,
		log:       log,
		now:       time.Now,
	}
}

type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

type AuthResult struct {
	Token string
	User  models.User
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)

	if len(input.Name) < nameMinLen || len(input.Name) > nameMaxLen {
		return AuthResult{}, apperr.Validation("name must be between 1 and 20 characters")
	}
	if !emailPattern.MatchString(input.Email) {
		return AuthResult{}, apperr.Validation("email is not valid")
	}
	if err := validatePassword(input.Password, input.PasswordConfirm); err != nil {
		return AuthResult{}, err
	}

	if _, err := s.directory.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, apperr.Validation("email already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Role:         models.UserRoleUser,
		Active:       true,
	}

	if err := s.directory.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return AuthResult{}, apperr.Validation("email already registered")
		}
		return AuthResult{}, err
	}

	return s.issueFor(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = normalizeEmail(email)

	user, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Burn a hash comparison so unknown emails take as long as
			// wrong passwords.
			security.VerifyPassword(password, s.dummyHash)
			return AuthResult{}, apperr.InvalidCredentials()
		}
		return AuthResult{}, err
	}

	if s.lockout.IsLocked(user, s.now()) {
		return AuthResult{}, apperr.LockedAccount()
	}

	if !security.VerifyPassword(password, user.PasswordHash) {
		if err := s.lockout.RecordFailure(ctx, user.ID); err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("record login failure")
		}
		return AuthResult{}, apperr.InvalidCredentials()
	}

	if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
		return AuthResult{}, err
	}

	return s.issueFor(user)
}

// ForgotPassword creates a single-use reset token and mails it to the
// account owner. A delivery failure rolls the reset fields back so no
// undeliverable token stays outstanding.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("no user with that email address")
		}
		return err
	}

	if s.lockout.IsLocked(user, s.now()) {
		return apperr.LockedAccount()
	}

	raw, digest, err := security.NewResetToken()
	if err != nil {
		return err
	}

	if err := s.directory.SetResetToken(ctx, user.ID, digest, s.now().Add(s.resetTTL)); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Forgot your password? Submit a PATCH request with your new password to /api/v1/users/resetPassword/%s\nThe token is valid for %s. If you didn't request this, ignore this email.",
		raw, s.resetTTL,
	)

	if err := s.mail.Send(ctx, user.Email, "Your password reset token", body); err != nil {
		// Send may have failed because the request context expired;
		// the rollback must still run or an undeliverable token stays
		// outstanding. Detach from the request's cancellation but keep
		// a deadline of our own.
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if clearErr := s.directory.ClearResetToken(rollbackCtx, user.ID); clearErr != nil {
			s.log.Error().Err(clearErr).Str("user_id", user.ID).Msg("rollback reset token")
		}
		return apperr.Delivery(err)
	}

	return nil
}

// ResetPassword redeems a raw reset token. Redemption and the password
// update are one conditional store operation, so a token consumed once
// can never succeed again.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (AuthResult, error) {
	if err := validatePassword(password, passwordConfirm); err != nil {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return AuthResult{}, err
	}

	digest := security.HashResetToken(rawToken)
	changedAt := s.now().Add(-passwordChangedAtSkew)

	user, err := s.directory.RedeemResetToken(ctx, digest, passwordHash, changedAt)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, apperr.NotFound("token is invalid or has expired")
		}
		return AuthResult{}, err
	}

	return s.issueFor(user)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, password, passwordConfirm string) (AuthResult, error) {
	user, err := s.directory.GetByID(ctx, userID)
	if err != nil {
		return AuthResult{}, err
	}

	if !security.VerifyPassword(currentPassword, user.PasswordHash) {
		return AuthResult{}, apperr.InvalidCredentials()
	}

	if err := validatePassword(password, passwordConfirm); err != nil {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return AuthResult{}, err
	}

	changedAt := s.now().Add(-passwordChangedAtSkew)
	if err := s.directory.UpdatePassword(ctx, user.ID, passwordHash, changedAt); err != nil {
		return AuthResult{}, err
	}

	user.PasswordHash = passwordHash
	user.PasswordChangedAt = &changedAt

	return s.issueFor(user)
}

// Deactivate soft-deletes the account. The user disappears from every
// scoped lookup until reactivated by an administrative path.
func (s *AuthService) Deactivate(ctx context.Context, userID string) error {
	return s.directory.Deactivate(ctx, userID)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.directory.List(ctx)
}

func (s *AuthService) issueFor(user models.User) (AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, s.now())
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validatePassword(password, passwordConfirm string) error {
	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		return apperr.Validation("password must be between 8 and 40 characters")
	}
	if password != passwordConfirm {
		return apperr.Validation("password fields should be the same")
	}
	return nil
}
