package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/smstore/backend/internal/model"
)

// Claims is the verified content of a claim token. It is never persisted;
// it is reconstructed from the token signature on every request.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the numeric user ID carried in the subject claim.
func (c *Claims) SubjectID() uint64 {
	id, _ := parseSubject(c.Subject)
	return id
}

// AccessToken is a signed claim token together with its expiry. Access
// tokens are short-lived and travel in the access cookie (or a bearer
// header on the push-channel handshake).
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// RefreshToken is the opaque rotating credential handed to the client.
// Only its SHA-256 hash is stored server-side.
type RefreshToken struct {
	Raw string    `json:"token"`
	Exp time.Time `json:"expires"`
}

// CredentialStore is the persistence contract for refresh credentials.
// Consume must be an atomic check-and-set: it revokes a live, unexpired
// credential and returns its owner, or ErrInvalidRefresh when the row is
// absent, already revoked or expired. Two concurrent Consume calls for
// the same hash must never both succeed.
type CredentialStore interface {
	Insert(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error
	Consume(ctx context.Context, tokenHash string) (uint64, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// SubjectDirectory resolves the current role of a subject. The rotation
// path re-reads the role so a demoted account does not keep minting
// claims with its old role.
type SubjectDirectory interface {
	RoleOf(ctx context.Context, userID uint64) (model.Role, error)
}

// Authority issues, verifies and rotates credential pairs.
type Authority struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      CredentialStore
	subjects   SubjectDirectory
}

// NewAuthority wires an Authority. accessTTL must be shorter than
// refreshTTL; the constructor does not enforce it because both come from
// validated config.
func NewAuthority(secret string, accessTTL, refreshTTL time.Duration, store CredentialStore, subjects SubjectDirectory) *Authority {
	return &Authority{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		subjects:   subjects,
	}
}

// AccessTTL exposes the claim lifetime for cookie max-age calculations.
func (a *Authority) AccessTTL() time.Duration { return a.accessTTL }

// RefreshTTL exposes the refresh lifetime for cookie max-age calculations.
func (a *Authority) RefreshTTL() time.Duration { return a.refreshTTL }

// IssuePair mints a signed claim token for the subject and records one new
// refresh credential row. The refresh value is 48 bytes of entropy,
// hex-encoded; the store only ever sees its hash.
func (a *Authority) IssuePair(ctx context.Context, userID uint64, role model.Role) (AccessToken, RefreshToken, error) {
	now := time.Now().UTC()
	exp := now.Add(a.accessTTL)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   formatSubject(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return AccessToken{}, RefreshToken{}, err
	}

	raw, err := randomHex(48)
	if err != nil {
		return AccessToken{}, RefreshToken{}, err
	}
	refresh := RefreshToken{Raw: raw, Exp: now.Add(a.refreshTTL)}
	if err := a.store.Insert(ctx, userID, HashRefreshRaw(raw), refresh.Exp); err != nil {
		return AccessToken{}, RefreshToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, refresh, nil
}

// VerifyClaim checks the signature and expiry of a claim token and returns
// its claims. Any failure collapses to ErrInvalidClaim.
func (a *Authority) VerifyClaim(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidClaim
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidClaim
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidClaim
	}
	if _, err := parseSubject(claims.Subject); err != nil {
		return nil, ErrInvalidClaim
	}
	return claims, nil
}

// Rotate redeems a refresh value: the matching credential is revoked in
// the same store operation that validates it, then a brand-new pair is
// issued for the owner. A second Rotate with the same value observes the
// row as revoked and fails with ErrInvalidRefresh.
func (a *Authority) Rotate(ctx context.Context, raw string) (uint64, AccessToken, RefreshToken, error) {
	userID, err := a.store.Consume(ctx, HashRefreshRaw(raw))
	if err != nil {
		return 0, AccessToken{}, RefreshToken{}, err
	}
	role, err := a.subjects.RoleOf(ctx, userID)
	if err != nil {
		return 0, AccessToken{}, RefreshToken{}, err
	}
	access, refresh, err := a.IssuePair(ctx, userID, role)
	if err != nil {
		return 0, AccessToken{}, RefreshToken{}, err
	}
	return userID, access, refresh, nil
}

// RevokeChain marks the specific credential revoked (logout). Other
// chains belonging to the same subject stay live.
func (a *Authority) RevokeChain(ctx context.Context, raw string) error {
	return a.store.Revoke(ctx, HashRefreshRaw(raw))
}

// RevokeAllForSubject cascades revocation across every live credential of
// a subject, ending all of their sessions at once.
func (a *Authority) RevokeAllForSubject(ctx context.Context, userID uint64) error {
	return a.store.RevokeAllForUser(ctx, userID)
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh value as a
// hex string. Storing only the hash keeps a leaked database dump from
// being exchangeable for sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
