package integrators

import "sort"

// Solution is the dense output of one integration: states and derivatives
// at every accepted step, continuously queryable by cubic Hermite
// interpolation.
type Solution struct {
	N      int
	Times  []float64
	States [][]float64
	Derivs [][]float64
}

func newSolution(n int) *Solution {
	return &Solution{N: n}
}

func (s *Solution) append(t float64, y, dy []float64) {
	yc := make([]float64, len(y))
	copy(yc, y)
	dc := make([]float64, len(dy))
	copy(dc, dy)
	s.Times = append(s.Times, t)
	s.States = append(s.States, yc)
	s.Derivs = append(s.Derivs, dc)
}

// Start returns the first covered time.
func (s *Solution) Start() float64 { return s.Times[0] }

// End returns the last covered time.
func (s *Solution) End() float64 { return s.Times[len(s.Times)-1] }

// At evaluates the dense solution at time t. Queries beyond the covered
// interval return the nearest endpoint state.
func (s *Solution) At(t float64) []float64 {
	out := make([]float64, s.N)
	last := len(s.Times) - 1
	if t <= s.Times[0] {
		copy(out, s.States[0])
		return out
	}
	if t >= s.Times[last] {
		copy(out, s.States[last])
		return out
	}

	// First knot at or above t; the exact-hit case returns the knot state,
	// otherwise the segment is [hi-1, hi].
	hi := sort.SearchFloat64s(s.Times, t)
	if s.Times[hi] == t {
		copy(out, s.States[hi])
		return out
	}
	lo := hi - 1

	t0, t1 := s.Times[lo], s.Times[hi]
	h := t1 - t0
	theta := (t - t0) / h
	y0, y1 := s.States[lo], s.States[hi]
	d0, d1 := s.Derivs[lo], s.Derivs[hi]

	// Cubic Hermite basis.
	th2 := theta * theta
	th3 := th2 * theta
	h00 := 2*th3 - 3*th2 + 1
	h10 := th3 - 2*th2 + theta
	h01 := -2*th3 + 3*th2
	h11 := th3 - th2
	for i := 0; i < s.N; i++ {
		out[i] = h00*y0[i] + h10*h*d0[i] + h01*y1[i] + h11*h*d1[i]
	}
	return out
}

// AtAll evaluates the solution at each query time, preserving order.
func (s *Solution) AtAll(times []float64) [][]float64 {
	out := make([][]float64, len(times))
	for i, t := range times {
		out[i] = s.At(t)
	}
	return out
}
