package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/testimonial-board/internal/apperror"
	"github.com/sakif/testimonial-board/internal/model"
	"github.com/sakif/testimonial-board/internal/repository"
)

// UserStore implements repository.UserRepository on top of the shared
// connection pool. Obtain one via DB.Users().
type UserStore struct {
	db *DB
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// Create inserts a new user record.
//
// Email uniqueness is enforced by the UNIQUE constraint — we don't do a
// SELECT-then-INSERT check, because two concurrent registrations for the same
// email would both pass the check and one insert would still fail. Letting
// the constraint decide and translating the violation to ErrConflict is both
// simpler and race-free.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, avatar_url, password_hash, origin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.AvatarURL,
		user.PasswordHash,
		user.Origin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", fmt.Sprintf("email %s", user.Email))
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email address.
// Returns apperror.ErrNotFound if the email is not registered.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *UserStore) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, avatar_url, password_hash, origin, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.Origin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprintf("%v", arg))
		}
		return nil, fmt.Errorf("sqlite: getting user %v: %w", arg, err)
	}

	return &u, nil
}

// UpsertOAuth creates or refreshes an account keyed by email.
//
// First OAuth sign-in → INSERT with Origin=oauth and no password hash.
// Subsequent sign-ins → UPDATE name/avatar in case they changed at the
// provider, keeping the existing internal ID, origin, and password hash (a
// credentials account that later signs in with OAuth keeps its password).
func (s *UserStore) UpsertOAuth(ctx context.Context, user *model.User) error {
	var existingID, existingOrigin string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, origin FROM users WHERE email = ?`, user.Email,
	).Scan(&existingID, &existingOrigin)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by email %s: %w", user.Email, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.Origin = existingOrigin
		user.UpdatedAt = time.Now()
		_, err = s.db.conn.ExecContext(ctx,
			`UPDATE users SET name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
			user.Name,
			user.AvatarURL,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.Origin = model.OriginOAuth
	user.PasswordHash = ""
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, avatar_url, password_hash, origin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.AvatarURL,
		user.Origin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// A registration racing this upsert can take the email first.
		if isUniqueViolation(err) {
			return apperror.Conflict("user", fmt.Sprintf("email %s", user.Email))
		}
		return fmt.Errorf("sqlite: provisioning oauth user (email=%s): %w", user.Email, err)
	}

	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error.
// modernc.org/sqlite doesn't export a typed error for this, so we match the
// stable "UNIQUE constraint failed" text from the SQLite core.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
