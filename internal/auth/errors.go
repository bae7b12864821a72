// Package auth implements the token authority and the permission engine.
// The authority issues paired credentials: a short-lived signed claim
// token (HS256 JWT carrying subject and role) and a long-lived opaque
// refresh value that is persisted server-side, single-use and rotated on
// redemption. The permission engine is a pure lookup over a static
// role-to-permission table.
package auth

import "errors"

// ErrInvalidClaim is returned when a claim token is malformed, expired or
// carries a bad signature. Handlers translate it into HTTP 401.
var ErrInvalidClaim = errors.New("invalid claim token")

// ErrInvalidRefresh is returned when a refresh value is unknown, revoked
// or expired. Reuse of an already-rotated value fails with this same
// error so a stolen token is indistinguishable from a stale one.
var ErrInvalidRefresh = errors.New("invalid refresh credential")
