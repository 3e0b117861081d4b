// Package sequence maps a placement index k to the prescribed area of the
// k-th disk. Each family also knows the total of its infinite series, which
// a scaled container uses as its area.
package sequence

import (
	"fmt"
	"math"
	"strings"

	"github.com/eugenenazirov/zetafill/internal/zeta"
)

// Family names a built-in area sequence.
type Family string

const (
	// Fixed gives every disk the same area A.
	Fixed Family = "fixed"
	// Harmonic gives A_k = 1/(d + k).
	Harmonic Family = "harmonic"
	// Power gives A_k = 1/k^s, the Riemann zeta series.
	Power Family = "power"
	// Hurwitz gives A_k = 1/(a + k)^s.
	Hurwitz Family = "hurwitz"
	// Geometric gives A_k = 1/b^k.
	Geometric Family = "geometric"
)

// Families lists the built-in families in a stable order.
func Families() []Family {
	return []Family{Fixed, Harmonic, Power, Hurwitz, Geometric}
}

// Params selects a family and its parameters. Fields a family does not use
// are ignored.
type Params struct {
	Family    Family  `json:"family" yaml:"family" toml:"family"`
	Exponent  float64 `json:"s,omitempty" yaml:"s" toml:"s"`
	Offset    float64 `json:"a,omitempty" yaml:"a" toml:"a"`
	Base      float64 `json:"base,omitempty" yaml:"base" toml:"base"`
	Area      float64 `json:"area,omitempty" yaml:"area" toml:"area"`
	Tolerance float64 `json:"tolerance,omitempty" yaml:"tolerance" toml:"tolerance"`
}

// Sequence yields the area of the k-th disk.
type Sequence interface {
	// Area returns A_k. Callers must not ask for k < FirstK.
	Area(k int) float64
	// FirstK is the smallest index at which the sequence is defined.
	FirstK() int
	// Total is Σ A_k for k >= FirstK, or +Inf when the series diverges.
	Total() float64
	// String renders the formula, e.g. "1/k^1.30".
	String() string
}

// New builds the sequence described by p.
func New(p Params) (Sequence, error) {
	switch Family(strings.ToLower(string(p.Family))) {
	case Fixed:
		if !positive(p.Area) {
			return nil, fmt.Errorf("%w: fixed area must be positive, got %v", ErrInvalidParams, p.Area)
		}
		return fixed{area: p.Area}, nil
	case Harmonic:
		if !(p.Offset >= 0) || math.IsInf(p.Offset, 0) {
			return nil, fmt.Errorf("%w: harmonic offset must be >= 0, got %v", ErrInvalidParams, p.Offset)
		}
		return harmonic{d: p.Offset}, nil
	case Power:
		if !positive(p.Exponent) {
			return nil, fmt.Errorf("%w: exponent must be positive, got %v", ErrInvalidParams, p.Exponent)
		}
		return power{s: p.Exponent}, nil
	case Hurwitz:
		if !positive(p.Exponent) {
			return nil, fmt.Errorf("%w: exponent must be positive, got %v", ErrInvalidParams, p.Exponent)
		}
		if !positive(p.Offset) {
			return nil, fmt.Errorf("%w: hurwitz offset must be positive, got %v", ErrInvalidParams, p.Offset)
		}
		tol := p.Tolerance
		if tol == 0 {
			tol = zeta.HurwitzTolerance
		}
		if !positive(tol) {
			return nil, fmt.Errorf("%w: tolerance must be positive, got %v", ErrInvalidParams, p.Tolerance)
		}
		if tol < zeta.MinHurwitzTolerance {
			return nil, fmt.Errorf("%w: tolerance must be >= %g, got %v", ErrInvalidParams, zeta.MinHurwitzTolerance, p.Tolerance)
		}
		return hurwitz{s: p.Exponent, a: p.Offset, tol: tol}, nil
	case Geometric:
		if !(p.Base > 1) || math.IsInf(p.Base, 0) {
			return nil, fmt.Errorf("%w: geometric base must be > 1, got %v", ErrInvalidParams, p.Base)
		}
		return geometric{b: p.Base}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, p.Family)
	}
}

// Sum returns Σ A_k for k >= from: the series total less the leading terms
// a run skips by starting past FirstK. Divergent series give +Inf.
func Sum(seq Sequence, from int) float64 {
	total := seq.Total()
	if zeta.Divergent(total) {
		return math.Inf(1)
	}
	for k := seq.FirstK(); k < from; k++ {
		total -= seq.Area(k)
	}
	return total
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

type fixed struct{ area float64 }

func (f fixed) Area(int) float64 { return f.area }
func (fixed) FirstK() int        { return 0 }
func (fixed) Total() float64     { return math.Inf(1) }
func (f fixed) String() string   { return fmt.Sprintf("%g", f.area) }

type harmonic struct{ d float64 }

func (h harmonic) Area(k int) float64 { return 1 / (h.d + float64(k)) }

func (h harmonic) FirstK() int {
	if h.d > 0 {
		return 0
	}
	return 1
}

func (harmonic) Total() float64   { return math.Inf(1) }
func (h harmonic) String() string { return fmt.Sprintf("1/(%g+k)", h.d) }

type power struct{ s float64 }

func (p power) Area(k int) float64 { return 1 / math.Pow(float64(k), p.s) }
func (power) FirstK() int          { return 1 }

func (p power) Total() float64 {
	if p.s <= 1 {
		return math.Inf(1)
	}
	return zeta.Riemann(p.s)
}

func (p power) String() string { return fmt.Sprintf("1/k^%.2f", p.s) }

type hurwitz struct{ s, a, tol float64 }

func (h hurwitz) Area(k int) float64 { return 1 / math.Pow(h.a+float64(k), h.s) }
func (hurwitz) FirstK() int          { return 0 }
func (h hurwitz) Total() float64     { return zeta.HurwitzTol(h.s, h.a, h.tol) }

func (h hurwitz) String() string { return fmt.Sprintf("1/(%.2f+k)^%.2f", h.a, h.s) }

type geometric struct{ b float64 }

func (g geometric) Area(k int) float64 { return 1 / math.Pow(g.b, float64(k)) }
func (geometric) FirstK() int          { return 0 }
func (g geometric) Total() float64     { return zeta.Geometric(g.b) }
func (g geometric) String() string     { return fmt.Sprintf("1/%.4f^k", g.b) }

// Func adapts a caller-supplied area rule. Sum is the series total if known;
// leave it zero for a divergent or unknown total.
type Func struct {
	Fn    func(k int) float64
	Start int
	Sum   float64
	Label string
}

// Area implements Sequence.
func (f Func) Area(k int) float64 { return f.Fn(k) }

// FirstK implements Sequence.
func (f Func) FirstK() int { return f.Start }

// Total implements Sequence.
func (f Func) Total() float64 {
	if !positive(f.Sum) {
		return math.Inf(1)
	}
	return f.Sum
}

func (f Func) String() string {
	if f.Label != "" {
		return f.Label
	}
	return "custom"
}
