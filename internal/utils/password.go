// Package utils holds small helpers shared across layers.
package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt digest of a password at the configured
// cost. The plaintext is never stored.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt digest against a candidate password in
// constant time.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
