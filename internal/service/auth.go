// Package service contains the business logic layer: registration and login
// on one side, the testimonial ingestion/retrieval pipeline on the other.
// Handlers parse HTTP and delegate here; this package knows nothing about
// HTTP and returns domain errors (apperror) that the handler layer maps to
// status codes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/testimonial-board/internal/apperror"
	"github.com/sakif/testimonial-board/internal/auth"
	"github.com/sakif/testimonial-board/internal/model"
	"github.com/sakif/testimonial-board/internal/repository"
)

const (
	MaxNameLength     = 100
	MaxPasswordLength = 72 // bcrypt limit, enforced again in auth.PasswordService
	MinPasswordLength = 8
)

// AuthService handles registration and sign-in.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users     repository.UserRepository → account records
//   - tokens    *auth.TokenService        → JWT session tokens
//   - passwords *auth.PasswordService     → bcrypt hashing
//   - logger    *slog.Logger              → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record with the issued session token so the
// handler can set the cookie and write the response in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a credentials account.
//
// Validation happens before any storage is touched. The duplicate-email case
// is NOT pre-checked with a lookup — the repository's UNIQUE constraint
// decides, which is the only race-free way to do it, and comes back as
// apperror.ErrConflict (409).
//
// The returned user carries no password hash in its JSON form (model.User
// marks the field `json:"-"`), and the plaintext password is never logged.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email is not a valid address")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Origin:       model.OriginCredentials,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// LoginWithCredentials verifies an email/password pair and issues a session.
//
// Every failure — unknown email, OAuth-only account, wrong password — comes
// back as the same ErrUnauthorized so the response doesn't reveal whether an
// email is registered.
func (s *AuthService) LoginWithCredentials(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("credentials", "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	// OAuth-only accounts have no hash; comparing against an empty hash
	// would fail anyway, but rejecting explicitly keeps the invariant
	// visible: credentials login requires a credentials account.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user signed in",
		slog.String("userID", user.ID),
		slog.String("origin", user.Origin),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// LoginOrRegisterOAuth completes an OAuth sign-in: upsert the account keyed
// by email (auto-provisioning it on first sign-in) and issue a session.
//
// Provisioning on first sign-in is a documented side effect of
// authentication — the testimonial pipeline depends on the user record
// existing once a session has been issued.
func (s *AuthService) LoginOrRegisterOAuth(ctx context.Context, pu *auth.ProviderUser) (*AuthResult, error) {
	if pu == nil {
		return nil, fmt.Errorf("service/auth: provider user must not be nil")
	}
	if pu.Email == "" {
		// Without an email there is nothing to key the account on, and the
		// user could never sign in to the same account again.
		return nil, apperror.Unauthorized("OAuth provider did not supply an email address")
	}

	user := &model.User{
		Email:     strings.ToLower(pu.Email),
		Name:      pu.Name,
		AvatarURL: pu.AvatarURL,
	}

	if err := s.users.UpsertOAuth(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting oauth user (email=%s): %w", user.Email, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via OAuth",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. Used by /api/me
// after the middleware has validated the session.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
