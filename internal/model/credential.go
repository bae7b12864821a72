package model

import "time"

// RefreshCredential models an entry in the `refresh_credentials` table.
// Each credential belongs to a user and is the persisted half of a
// session chain: redeeming it revokes the row and inserts a successor.
// The opaque value handed to the client is never stored; only its
// SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the credential.
//  TokenHash – SHA-256 hex digest of the opaque value.
//  ExpiresAt – expiration timestamp, checked lazily at lookup.
//  RevokedAt – when the credential was revoked (null while live).
//  CreatedAt – timestamp of creation.
type RefreshCredential struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
