package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the account owner of applications and jobs. Account management is
// out of scope here; the auth middleware only needs to resolve a session
// token to a user id.
type User struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Session is a bearer-token session. The raw token is never stored; lookup is
// by prefix, then bcrypt comparison against TokenHash.
type Session struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	UserID      uuid.UUID  `db:"user_id"      json:"user_id"`
	TokenPrefix string     `db:"token_prefix" json:"-"`
	TokenHash   string     `db:"token_hash"   json:"-"`
	ExpiresAt   time.Time  `db:"expires_at"   json:"expires_at"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
}
