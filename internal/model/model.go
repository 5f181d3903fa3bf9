// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	Roles     []string  // role names, defaults to {"user"}
	CreatedAt time.Time
}

// FileRecord is the authoritative description of a stored file. The metadata
// store decides what exists; the filesystem only holds the bytes.
type FileRecord struct {
	ID          uuid.UUID // assigned by the store on first upload
	OwnerID     uuid.UUID // FK -> users.id, immutable after creation
	Filename    string    // sanitized, single path segment
	ContentType string    // advisory, client-supplied
	Size        int64     // measured at write time, never trusted from client
	UploadedAt  time.Time
}

// RefreshToken is a long-lived opaque credential that entitles its holder to
// obtain new access tokens without re-authenticating.
type RefreshToken struct {
	ID        uuid.UUID
	Token     string // high-entropy opaque value, unique
	Username  string // subject reference
	ExpiresAt time.Time
}

// Session collects everything issued on a successful login.
type Session struct {
	AccessToken     string
	AccessExpiresAt time.Time
	Refresh         RefreshToken
	User            User
}
