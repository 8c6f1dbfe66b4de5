package dice

import (
	"crypto/rand"
	"math/big"
	randv2 "math/rand/v2"
)

// Source is the randomness provider for dice rolls. The dice never mutate a
// Source beyond calling Intn, so one Source may back any number of dice.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a uniformly distributed int in [0, n).
//
// Precondition: n > 0. Panics with "dice: Intn called with n <= 0" if n <= 0.
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

// seededSource is a reproducible Source for simulations and tests. It is not
// safe for concurrent use.
type seededSource struct {
	r *randv2.Rand
}

// NewSeededSource returns a deterministic PCG-backed Source.
func NewSeededSource(seed uint64) Source {
	return &seededSource{r: randv2.New(randv2.NewPCG(seed, 0))}
}

func (s *seededSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	return s.r.IntN(n)
}
