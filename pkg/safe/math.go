package safe

import (
	"math"
	"math/bits"
)

// Add performs uint64 addition and panics on overflow.
func Add(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		panic("CORE_SAFE_ADD_OVERFLOW")
	}
	return a + b
}

// Sub performs uint64 subtraction clamped at zero: when b > a it returns 0
// instead of wrapping around. Settlement math relies on this clamp when a
// curve is evaluated one tick below its price range.
func Sub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// MulDiv computes a*b/c using a 128-bit intermediate so the product cannot
// wrap before the division. A zero divisor is treated as 1. Panics if the
// quotient itself does not fit in 64 bits.
func MulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		c = 1
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		panic("CORE_SAFE_MULDIV_OVERFLOW")
	}
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// Div performs uint64 division, treating a zero divisor as 1.
func Div(a, b uint64) uint64 {
	if b == 0 {
		b = 1
	}
	return a / b
}

// Min returns the smaller of a and b.
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
