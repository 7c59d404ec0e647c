package dice

import (
	"crypto/rand"
	"math/big"
)

// Source is the randomness provider for dice rolls and weighted draws.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// cryptoSource is a Source backed by crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is uniform in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "dice: Intn called with n <= 0" if n <= 0.
// Panics with "dice: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// float53Denominator is 2^53, the largest power of two whose reciprocal steps
// are exactly representable in a float64 mantissa.
const float53Denominator = 1 << 53

// UniformFloat returns a uniform float64 in [0, max) drawn from src.
// Used by weighted selections that operate on fractional weights.
//
// Precondition: src must be non-nil; max must be > 0.
// Postcondition: 0 <= result < max.
func UniformFloat(src Source, max float64) float64 {
	return float64(src.Intn(float53Denominator)) / float53Denominator * max
}
