package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/testimonial-board/internal/model"
	"github.com/sakif/testimonial-board/internal/repository"
)

func createTestTestimonial(t *testing.T, db *DB, userID, content string) *model.Testimonial {
	t.Helper()
	tm := &model.Testimonial{
		Name:    "Student",
		Course:  "Go Fundamentals",
		Type:    model.TypeText,
		Content: content,
		Message: content,
		Date:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		UserID:  userID,
	}
	if err := db.Testimonials().Create(context.Background(), tm); err != nil {
		t.Fatalf("failed to create test testimonial: %v", err)
	}
	return tm
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateTestimonial(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "author@x.com")

	tm := createTestTestimonial(t, db, user.ID, "Great course")

	if tm.ID == "" {
		t.Error("Create() did not set testimonial.ID")
	}
	if tm.CreatedAt.IsZero() {
		t.Error("Create() did not set testimonial.CreatedAt")
	}

	// Read it back through List and verify the round trip.
	items, err := db.Testimonials().List(context.Background(), repository.ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("List() returned %d items, want 1", len(items))
	}
	if items[0].Content != "Great course" {
		t.Errorf("Content = %q, want %q", items[0].Content, "Great course")
	}
	if items[0].UserID != user.ID {
		t.Errorf("UserID = %q, want %q", items[0].UserID, user.ID)
	}
}

// =========================================================================
// LIST / PAGINATION TESTS
// =========================================================================

func TestListTestimonials_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "author@x.com")

	first := createTestTestimonial(t, db, user.ID, "first")
	second := createTestTestimonial(t, db, user.ID, "second")
	third := createTestTestimonial(t, db, user.ID, "third")

	items, err := db.Testimonials().List(context.Background(), repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("List() returned %d items, want 3", len(items))
	}

	// created_at DESC with id DESC tie-break: xids are time-sortable, so
	// even same-timestamp inserts come back newest-insert-first.
	if items[0].ID != third.ID || items[1].ID != second.ID || items[2].ID != first.ID {
		t.Errorf("order = [%s %s %s], want [%s %s %s]",
			items[0].ID, items[1].ID, items[2].ID,
			third.ID, second.ID, first.ID)
	}
}

func TestListTestimonials_PaginationCoversAllWithoutDuplicates(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "author@x.com")

	for i := 0; i < 7; i++ {
		createTestTestimonial(t, db, user.ID, "entry")
	}

	seen := map[string]bool{}
	pageSize := 3
	for page := 1; page <= 3; page++ {
		items, err := db.Testimonials().List(context.Background(), repository.ListOptions{
			Limit:  pageSize,
			Offset: (page - 1) * pageSize,
		})
		if err != nil {
			t.Fatalf("List() page %d error = %v", page, err)
		}
		if len(items) > pageSize {
			t.Errorf("page %d returned %d items, want <= %d", page, len(items), pageSize)
		}
		for _, item := range items {
			if seen[item.ID] {
				t.Errorf("testimonial %s appeared on more than one page", item.ID)
			}
			seen[item.ID] = true
		}
	}

	if len(seen) != 7 {
		t.Errorf("pages covered %d distinct items, want 7", len(seen))
	}
}

func TestCountTestimonials(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "author@x.com")

	count, err := db.Testimonials().Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() on empty table = %d, want 0", count)
	}

	for i := 0; i < 4; i++ {
		createTestTestimonial(t, db, user.ID, "entry")
	}

	count, err = db.Testimonials().Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 4 {
		t.Errorf("Count() = %d, want 4", count)
	}
}

// =========================================================================
// LEGACY BACKFILL TESTS
// =========================================================================

// TestBackfillLegacyUserRefs_Idempotent simulates a database migrated from
// the old schema where the user reference was a loose string column, then
// verifies the backfill resolves it into user_id and that running the pass a
// second time is a no-op.
func TestBackfillLegacyUserRefs_Idempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "legacy@x.com")

	// Recreate the legacy shape: a legacy_user_ref column holding the user
	// reference as a bare string, with user_id left empty.
	if err := db.addColumnIfNotExists("testimonials", "legacy_user_ref", "TEXT"); err != nil {
		t.Fatalf("adding legacy column: %v", err)
	}
	// Legacy databases predate foreign-key enforcement; the placeholder ''
	// in user_id would trip the FK check, so switch it off around the insert
	// the same way those databases were written.
	if _, err := db.conn.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		t.Fatalf("disabling foreign keys: %v", err)
	}
	t.Cleanup(func() { db.conn.Exec("PRAGMA foreign_keys=ON") })
	_, err := db.conn.Exec(
		`INSERT INTO testimonials (id, name, course, type, content, message, date, user_id, legacy_user_ref)
		 VALUES ('legacyrow1', 'Old Student', 'Go Fundamentals', 'text', 'loved it', 'loved it', '2024-01-01', '', ?)`,
		user.ID,
	)
	if err != nil {
		t.Fatalf("inserting legacy row: %v", err)
	}

	if err := db.backfillLegacyUserRefs(); err != nil {
		t.Fatalf("backfill error = %v", err)
	}

	var gotUserID string
	if err := db.conn.QueryRow(
		`SELECT user_id FROM testimonials WHERE id = 'legacyrow1'`,
	).Scan(&gotUserID); err != nil {
		t.Fatalf("reading back legacy row: %v", err)
	}
	if gotUserID != user.ID {
		t.Errorf("user_id after backfill = %q, want %q", gotUserID, user.ID)
	}

	// Second run must change nothing.
	if err := db.backfillLegacyUserRefs(); err != nil {
		t.Fatalf("second backfill error = %v", err)
	}
	if err := db.conn.QueryRow(
		`SELECT user_id FROM testimonials WHERE id = 'legacyrow1'`,
	).Scan(&gotUserID); err != nil {
		t.Fatalf("reading back legacy row after second run: %v", err)
	}
	if gotUserID != user.ID {
		t.Errorf("user_id after second backfill = %q, want unchanged %q", gotUserID, user.ID)
	}
}

func TestBackfillLegacyUserRefs_FreshSchemaIsNoop(t *testing.T) {
	db := newTestDB(t)

	// No legacy column exists on a fresh database — the pass must not error.
	if err := db.backfillLegacyUserRefs(); err != nil {
		t.Fatalf("backfill on fresh schema error = %v", err)
	}
}
