// Package model defines the data structures used throughout the application.
package model

import "time"

// Account origin values for User.Origin.
//
// WHY AN EXPLICIT ORIGIN FIELD?
// We support two ways of creating an account: email/password registration and
// OAuth sign-in (GitHub or Google). OAuth accounts have no password hash, and
// some flows need to know which kind of account they're dealing with (e.g.
// credentials login must reject OAuth-only accounts rather than comparing
// against an empty hash). A tagged field is clearer and safer than inferring
// the account kind from whether the password hash column happens to be empty.
const (
	OriginCredentials = "credentials"
	OriginOAuth       = "oauth"
)

// User represents a registered account.
//
// Email is the primary external identifier — it's what credentials login and
// OAuth provisioning both key on. The UNIQUE constraint on email in the DB
// ensures one address maps to exactly one account. We still generate our own
// internal string ID (xid) so primary keys aren't tied to a mutable email.
//
// PasswordHash is the bcrypt hash for credentials accounts and empty for
// OAuth-only accounts. It is NEVER serialized to JSON (`json:"-"`) — the hash
// must not leave the server, not even to the account's own owner.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	Name         string    `json:"name"      db:"name"`       // Display name (may be empty)
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"` // Profile picture URL (may be empty)
	PasswordHash string    `json:"-"         db:"password_hash"`
	Origin       string    `json:"origin"    db:"origin"` // OriginCredentials or OriginOAuth
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicProfile is the subset of a user's fields that is safe to attach to
// publicly visible data (testimonial enrichment). Never includes email.
type PublicProfile struct {
	Name      string `json:"name"`
	AvatarURL string `json:"image"`
}

// SentinelProfile is substituted when a testimonial references a user that no
// longer exists. A missing user must not break a public listing.
func SentinelProfile() PublicProfile {
	return PublicProfile{Name: "Unknown User", AvatarURL: ""}
}
