package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/smstore/backend/internal/auth"
)

// CredentialRepo persists refresh credentials (single 'token_hash'
// column). It implements auth.CredentialStore.
type CredentialRepo struct{ DB *sql.DB }

func NewCredentialRepo(db *sql.DB) *CredentialRepo { return &CredentialRepo{DB: db} }

// Insert records a new refresh credential row.
func (r *CredentialRepo) Insert(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_credentials (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, expiresAt)
	return err
}

// Consume atomically revokes a live, unexpired credential and returns its
// owner. The revoke is a conditional UPDATE guarded by revoked_at IS NULL
// and the expiry, so of two racing callers exactly one observes a row
// change; the other gets auth.ErrInvalidRefresh. This is what makes a
// refresh value single-use.
func (r *CredentialRepo) Consume(ctx context.Context, tokenHash string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_credentials SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL AND expires_at > NOW()",
		tokenHash)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, auth.ErrInvalidRefresh
	}

	var userID uint64
	err = r.DB.QueryRowContext(ctx,
		"SELECT user_id FROM refresh_credentials WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, auth.ErrInvalidRefresh
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// Revoke marks a credential as revoked (logout). Revoking an already
// revoked or unknown hash is not an error.
func (r *CredentialRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_credentials SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForUser revokes every live credential belonging to a user.
func (r *CredentialRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_credentials SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}
