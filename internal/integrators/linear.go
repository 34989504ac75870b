package integrators

import (
	"errors"
	"math"
)

var errSingular = errors.New("integrators: singular iteration matrix")

// luFactor is an in-place LU decomposition with partial pivoting of a
// dense row-major n x n matrix.
type luFactor struct {
	a   []float64
	piv []int
	n   int
}

func luDecompose(a []float64, n int) (*luFactor, error) {
	piv := make([]int, n)
	for col := 0; col < n; col++ {
		// Pivot search.
		p := col
		max := math.Abs(a[col*n+col])
		for r := col + 1; r < n; r++ {
			if v := math.Abs(a[r*n+col]); v > max {
				max = v
				p = r
			}
		}
		if max == 0 {
			return nil, errSingular
		}
		piv[col] = p
		if p != col {
			for c := 0; c < n; c++ {
				a[col*n+c], a[p*n+c] = a[p*n+c], a[col*n+c]
			}
		}
		inv := 1 / a[col*n+col]
		for r := col + 1; r < n; r++ {
			m := a[r*n+col] * inv
			a[r*n+col] = m
			for c := col + 1; c < n; c++ {
				a[r*n+c] -= m * a[col*n+c]
			}
		}
	}
	return &luFactor{a: a, piv: piv, n: n}, nil
}

// solve computes A^-1 b into a fresh slice.
func (lu *luFactor) solve(b []float64) []float64 {
	n := lu.n
	x := make([]float64, n)
	copy(x, b)
	for col := 0; col < n; col++ {
		if p := lu.piv[col]; p != col {
			x[col], x[p] = x[p], x[col]
		}
		for r := col + 1; r < n; r++ {
			x[r] -= lu.a[r*n+col] * x[col]
		}
	}
	for r := n - 1; r >= 0; r-- {
		for c := r + 1; c < n; c++ {
			x[r] -= lu.a[r*n+c] * x[c]
		}
		x[r] /= lu.a[r*n+r]
	}
	return x
}
