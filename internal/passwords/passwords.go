package passwords

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassword covers passwords bcrypt cannot hash (empty or over 72 bytes).
var ErrInvalidPassword = errors.New("password must be between 1 and 72 bytes")

// Hasher produces salted bcrypt hashes. The cost is fixed per instance so
// tests can run with bcrypt.MinCost.
type Hasher struct {
	cost int
}

// NewHasher clamps cost into bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a new salted hash; two calls on the same input differ.
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" || len(plain) > 72 {
		return "", ErrInvalidPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plain matches hash. bcrypt compares in constant time.
func (h *Hasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
