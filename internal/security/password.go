package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 12

// HashPassword produces a salted bcrypt hash of the password. Cost below the
// bcrypt minimum falls back to DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash. The
// comparison inside bcrypt is constant-time.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
