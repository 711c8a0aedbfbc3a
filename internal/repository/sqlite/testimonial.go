package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/testimonial-board/internal/model"
	"github.com/sakif/testimonial-board/internal/repository"
)

// TestimonialStore implements repository.TestimonialRepository on top of the
// shared connection pool. Obtain one via DB.Testimonials().
type TestimonialStore struct {
	db *DB
}

// Testimonials returns the testimonial repository backed by this database.
func (db *DB) Testimonials() *TestimonialStore { return &TestimonialStore{db: db} }

// compile-time check that *TestimonialStore implements repository.TestimonialRepository
var _ repository.TestimonialRepository = (*TestimonialStore)(nil)

// Create inserts a new testimonial. The record is immutable after this —
// there is no Update or Delete on the testimonial store.
//
// The ID is an xid: 20 chars, URL-safe, and sortable by creation time, which
// conveniently makes the `id DESC` pagination tie-break agree with insertion
// order for same-timestamp rows.
func (s *TestimonialStore) Create(ctx context.Context, t *model.Testimonial) error {
	t.ID = xid.New().String()

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO testimonials (id, name, course, type, content, message, date, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Name,
		t.Course,
		t.Type,
		t.Content,
		t.Message,
		t.Date,
		t.UserID,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating testimonial: %w", err)
	}

	return nil
}

// List retrieves testimonials with offset pagination, newest first.
//
// ORDERING:
// Sorted by created_at DESC with id DESC as a tie-break. created_at is the
// canonical recency field (monotonic, server-assigned); the user-supplied
// `date` column is display-only and never used for ordering. The tie-break
// makes pagination deterministic for records created within the same
// timestamp granularity.
func (s *TestimonialStore) List(ctx context.Context, opts repository.ListOptions) ([]model.Testimonial, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, name, course, type, content, message, date, user_id, created_at, updated_at
		 FROM testimonials
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing testimonials: %w", err)
	}
	defer rows.Close()

	testimonials := make([]model.Testimonial, 0, limit)

	for rows.Next() {
		var t model.Testimonial
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Course, &t.Type, &t.Content, &t.Message,
			&t.Date, &t.UserID, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning testimonial row: %w", err)
		}
		testimonials = append(testimonials, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating testimonials: %w", err)
	}

	return testimonials, nil
}

// Count returns the total number of testimonials, used by the retrieval
// service to compute totalPages.
func (s *TestimonialStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM testimonials`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting testimonials: %w", err)
	}
	return count, nil
}
