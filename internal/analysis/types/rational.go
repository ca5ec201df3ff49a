package types

import "math"

// Rational represents a rational number (numerator/denominator)
// Used for packet timestamps expressed against a container time base
type Rational struct {
	Num int64 // Numerator
	Den int64 // Denominator
}

// NewRational creates a new rational number
func NewRational(num, den int64) Rational {
	return Rational{Num: num, Den: den}
}

// Float64 returns the floating point representation
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Seconds converts the rational to seconds. The second return value is
// false when the conversion is undefined or non-finite.
func (r Rational) Seconds() (float64, bool) {
	if r.Den == 0 {
		return 0, false
	}
	s := float64(r.Num) / float64(r.Den)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, false
	}
	return s, true
}

// crossMulLimit bounds the operands of an exact cross-multiplied
// comparison so the int64 products cannot overflow.
const crossMulLimit = int64(1) << 31

// Cmp compares two rationals: -1 if r < o, 0 if equal, 1 if r > o.
// Comparison is exact (cross multiplication) while the operands fit,
// falling back to float comparison for extreme values.
func (r Rational) Cmp(o Rational) int {
	if r.Den > 0 && o.Den > 0 &&
		r.Num > -crossMulLimit && r.Num < crossMulLimit &&
		o.Num > -crossMulLimit && o.Num < crossMulLimit &&
		r.Den < crossMulLimit && o.Den < crossMulLimit {
		a := r.Num * o.Den
		b := o.Num * r.Den
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}

	a, b := r.Float64(), o.Float64()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Common time bases
var (
	TimeBase90kHz = Rational{Num: 1, Den: 90000} // Standard video (MPEG)
	TimeBase1kHz  = Rational{Num: 1, Den: 1000}  // Millisecond precision
)
