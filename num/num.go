// Package num abstracts the scalar type used for strategy
// probabilities and payoffs. The engine is generic over the scalar so
// that the same code runs in fast float64 arithmetic or in exact
// rational arithmetic for solvers that need it.
package num

import (
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

// Arith is the set of operations the engine needs from a scalar type.
type Arith[T any] interface {
	Zero() T
	One() T
	// FromInt converts a small integer (e.g. a multinomial factor).
	FromInt(n int) T
	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	Div(a, b T) T
	// Sign returns -1, 0 or +1 according to the sign of a.
	Sign(a T) int
	Cmp(a, b T) int
	// Parse converts a token such as "2", "-0.5" or "3/7".
	Parse(s string) (T, error)
	String(a T) string
}

// Float64 implements Arith over float64.
type Float64 struct{}

func (Float64) Zero() float64         { return 0 }
func (Float64) One() float64          { return 1 }
func (Float64) FromInt(n int) float64 { return float64(n) }
func (Float64) Add(a, b float64) float64 { return a + b }
func (Float64) Sub(a, b float64) float64 { return a - b }
func (Float64) Mul(a, b float64) float64 { return a * b }
func (Float64) Div(a, b float64) float64 { return a / b }

func (Float64) Sign(a float64) int {
	switch {
	case a < 0:
		return -1
	case a > 0:
		return 1
	}
	return 0
}

func (Float64) Cmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (Float64) Parse(s string) (float64, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	// Fall back to rational notation, e.g. "3/7".
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, errors.Errorf("invalid number %q", s)
	}
	f, _ := r.Float64()
	return f, nil
}

func (Float64) String(a float64) string {
	return strconv.FormatFloat(a, 'g', -1, 64)
}

// Rat implements Arith over *big.Rat for exact arithmetic.
// All operations allocate; values are never mutated in place, so
// results may share pointers with their operands' history safely.
type Rat struct{}

func (Rat) Zero() *big.Rat         { return new(big.Rat) }
func (Rat) One() *big.Rat          { return big.NewRat(1, 1) }
func (Rat) FromInt(n int) *big.Rat { return big.NewRat(int64(n), 1) }

func (Rat) Add(a, b *big.Rat) *big.Rat { return new(big.Rat).Add(a, b) }
func (Rat) Sub(a, b *big.Rat) *big.Rat { return new(big.Rat).Sub(a, b) }
func (Rat) Mul(a, b *big.Rat) *big.Rat { return new(big.Rat).Mul(a, b) }
func (Rat) Div(a, b *big.Rat) *big.Rat { return new(big.Rat).Quo(a, b) }

func (Rat) Sign(a *big.Rat) int   { return a.Sign() }
func (Rat) Cmp(a, b *big.Rat) int { return a.Cmp(b) }

func (Rat) Parse(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, errors.Errorf("invalid number %q", s)
	}
	return r, nil
}

func (Rat) String(a *big.Rat) string { return a.RatString() }
