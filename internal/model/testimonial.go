package model

import "time"

// Testimonial types. The type determines how Content is interpreted:
// TypeText means Content is the inline testimonial text; TypeAudio and
// TypeVideo mean Content is a durable URL to externally hosted media.
const (
	TypeText  = "text"
	TypeAudio = "audio"
	TypeVideo = "video"
)

// ValidType reports whether t is one of the three testimonial types.
func ValidType(t string) bool {
	return t == TypeText || t == TypeAudio || t == TypeVideo
}

// Testimonial is a user-submitted course review. Records are created once via
// the submission pipeline and never updated or deleted afterwards.
//
// FIELD NOTES:
//   - Name is the display name the submitter typed into the form. It may
//     differ from the owning user's profile name — both are kept.
//   - Message mirrors the inline text for text testimonials and is empty for
//     media testimonials. It's a secondary copy kept for the feed view.
//   - Date is the user-supplied course completion date. It is display-only;
//     the canonical feed ordering uses CreatedAt (see repository.List).
//   - UserID is a typed foreign key to users.id.
type Testimonial struct {
	ID        string    `json:"id"        db:"id"`
	Name      string    `json:"name"      db:"name"`
	Course    string    `json:"course"    db:"course"`
	Type      string    `json:"type"      db:"type"`
	Content   string    `json:"content"   db:"content"`
	Message   string    `json:"message"   db:"message"`
	Date      time.Time `json:"date"      db:"date"`
	UserID    string    `json:"userId"    db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// EnrichedTestimonial is a Testimonial joined with the owning user's public
// profile at read time. If the user record is gone, User holds the sentinel
// profile instead.
type EnrichedTestimonial struct {
	Testimonial
	User PublicProfile `json:"user"`
}
