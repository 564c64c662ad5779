package analysis

import (
	"math/bits"

	"github.com/pkg/errors"
)

// GCD returns the greatest common divisor of a and b.
func GCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

// LCM returns the least common multiple of a and b. LCM(0, x) is 0.
func LCM(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}

	hi, lo := bits.Mul64(a/GCD(a, b), b)
	if hi != 0 {
		return 0, errors.Wrapf(ErrOverflow, "lcm(%d, %d)", a, b)
	}

	return lo, nil
}
