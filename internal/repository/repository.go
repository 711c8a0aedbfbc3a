// Package repository defines the storage interfaces the service layer
// programs against. Concrete implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/testimonial-board/internal/model"
)

// ListOptions controls pagination for listing queries.
// Offset/limit are already resolved by the caller: page 3 with 10 per page
// arrives here as Limit=10, Offset=20.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository is the account store.
type UserRepository interface {
	// Create inserts a new user. Returns apperror.ErrConflict if the email
	// is already registered.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertOAuth creates or refreshes an account keyed by email, for OAuth
	// sign-ins. On first sign-in the account is provisioned with
	// Origin=oauth and no password hash; on later sign-ins name/avatar are
	// refreshed and the existing internal ID is kept.
	UpsertOAuth(ctx context.Context, user *model.User) error
}

// TestimonialRepository is the testimonial store. Records are insert-only:
// no update or delete operation is exposed.
type TestimonialRepository interface {
	Create(ctx context.Context, t *model.Testimonial) error
	// List returns records sorted by created_at descending with an id
	// tie-break, so pagination is deterministic even for records created in
	// the same instant.
	List(ctx context.Context, opts ListOptions) ([]model.Testimonial, error)
	// Count returns the total number of records, used to derive totalPages.
	Count(ctx context.Context) (int, error)
}
