package zeta

import "math"

// BorweinDegree is the number of terms used by Riemann. Fifteen terms give
// at least six significant digits for real s > 1.
const BorweinDegree = 15

// HurwitzTolerance is the term size at which Hurwitz stops summing. The
// result is accurate to roughly this absolute error and no better.
const HurwitzTolerance = 1e-6

// MinHurwitzTolerance is the smallest stopping threshold callers may ask for.
const MinHurwitzTolerance = 1e-12

// MaxHurwitzTerms bounds the direct sum in HurwitzTol. Past it the tail
// estimate takes over, so s close to 1 still returns in bounded time.
const MaxHurwitzTerms = 1 << 22

// factorials holds 0! through (2n)! for n = BorweinDegree, the range cheb
// reads. Entries past 22! are rounded.
var factorials = func() [2*BorweinDegree + 1]float64 {
	var f [2*BorweinDegree + 1]float64
	f[0] = 1
	for i := 1; i < len(f); i++ {
		f[i] = f[i-1] * float64(i)
	}
	return f
}()

// chebWeights[k] = cheb(k, BorweinDegree), computed once.
var chebWeights = func() [BorweinDegree + 1]float64 {
	var w [BorweinDegree + 1]float64
	for k := range w {
		w[k] = cheb(k, BorweinDegree)
	}
	return w
}()

func cheb(k, n int) float64 {
	var accum float64
	for i := 0; i <= k; i++ {
		num := factorials[n+i-1] * math.Pow(4, float64(i))
		den := factorials[n-i] * factorials[2*i]
		accum += num / den
	}
	return float64(n) * accum
}

// Riemann approximates ζ(s) for real s > 1. At the pole s == 1 the result is
// +Inf. For s < 1 the alternating series still converges to the analytic
// continuation, which callers sizing a container must not use; see Divergent.
func Riemann(s float64) float64 {
	if s == 1 {
		return math.Inf(1)
	}
	n := BorweinDegree
	chebnn := chebWeights[n]
	coef := -1 / (chebnn * (1 - math.Pow(2, 1-s)))
	var accum float64
	sign := 1.0
	for k := 0; k < n; k++ {
		accum += sign * (chebWeights[k] - chebnn) / math.Pow(float64(k+1), s)
		sign = -sign
	}
	return coef * accum
}

// Hurwitz approximates ζ(s, a) = Σ_{j≥0} (a+j)^-s for s > 1 and a > 0 using
// HurwitzTolerance as the stopping threshold.
func Hurwitz(s, a float64) float64 {
	return HurwitzTol(s, a, HurwitzTolerance)
}

// HurwitzTol is Hurwitz with an explicit stopping threshold. It returns +Inf
// when the series diverges (s <= 1) and NaN for a <= 0 or tol <= 0. At most
// MaxHurwitzTerms terms are summed directly.
func HurwitzTol(s, a, tol float64) float64 {
	if a <= 0 || tol <= 0 || math.IsNaN(s) || math.IsNaN(a) {
		return math.NaN()
	}
	if s <= 1 {
		return math.Inf(1)
	}
	whole := math.Floor(a)
	frac := a - whole
	j := whole
	var sum, q float64
	for n := 0; n < MaxHurwitzTerms; n++ {
		q = math.Pow(frac+j, -s)
		sum += q
		j++
		if q <= tol {
			break
		}
	}
	u := j + frac + 0.5
	return sum + math.Pow(u, 1-s)/(s-1)
}

// Geometric returns Σ_{k≥0} s^-k = s/(s-1) for s > 1, and +Inf otherwise.
func Geometric(s float64) float64 {
	if !(s > 1) {
		return math.Inf(1)
	}
	return s / (s - 1)
}

// Divergent reports whether v cannot be used as a finite series total.
func Divergent(v float64) bool {
	return math.IsInf(v, 0) || math.IsNaN(v) || v <= 0
}
