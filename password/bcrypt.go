package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the work factor used when a zero cost is configured.
const DefaultCost = 10

// maxPasswordBytes is the bcrypt input limit; longer inputs would be silently truncated.
const maxPasswordBytes = 72

var (
	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned by Hash when the plaintext exceeds 72 bytes.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// Bcrypt hashes and verifies credentials at a fixed work factor. It holds no mutable state and
// is safe for concurrent use.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher using cost, or [DefaultCost] when cost is zero.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int {
	return b.cost
}

// Hash returns the bcrypt encoding of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	// Raw bytes are hashed exactly as provided (no Unicode normalization).
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. Malformed or empty hashes yield false.
func (b *Bcrypt) Verify(plaintext, hash string) bool {
	if hash == "" || plaintext == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// NeedsRehash reports whether hash was produced with a cost other than the configured one.
// Unparseable hashes report false; they can never verify anyway.
func (b *Bcrypt) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return cost != b.cost
}
