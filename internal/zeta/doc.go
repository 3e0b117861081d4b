// Package zeta evaluates the infinite sums that size a scaled container:
// the Riemann zeta function (Borwein's algorithm 2), the Hurwitz zeta
// function (direct summation with a tail correction) and the geometric
// series. Divergent inputs yield +Inf rather than an error.
package zeta
