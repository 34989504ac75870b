// Package result recovers semantic tensors — states, affine outputs,
// sensitivities, curvatures — from the flattened joint solution vector.
//
// The joint layout matches packages deriv and odesys: states first, then
// dx/dT with the state index fastest, then d2x/dT2 with (state, T1, T2)
// stacked in that order. The tensor rank is inferred from the joint length
// alone; a length that fits no rank is a shape mismatch.
package result

import (
	"math"

	"github.com/avele/reactode/internal/compile"
	"github.com/avele/reactode/internal/deriv"
	"github.com/avele/reactode/internal/integrators"
	"github.com/avele/reactode/internal/kinerr"
	"github.com/avele/reactode/internal/odesys"
)

// Extractor slices one condition's dense solution.
type Extractor struct {
	sol *integrators.Solution
	m   *compile.Model
	act deriv.Active
	u   odesys.Input
}

// New wraps a dense joint solution for extraction.
func New(sol *integrators.Solution, m *compile.Model, act deriv.Active, u odesys.Input) *Extractor {
	if u == nil {
		empty := make([]float64, m.NU)
		u = func(float64) []float64 { return empty }
	}
	return &Extractor{sol: sol, m: m, act: act, u: u}
}

// NTFirst solves nx*nT + nx = len for the unique non-negative integer nT.
func (e *Extractor) NTFirst() (int, error) {
	nx := e.m.NX
	length := e.sol.N
	if nx <= 0 || length%nx != 0 || length/nx < 1 {
		return 0, kinerr.Shapef("joint length %d does not fit nx=%d first-order layout", length, nx)
	}
	return length/nx - 1, nil
}

// NTSecond solves nx*nT^2 + nx*nT + nx = len for the unique non-negative
// integer nT.
func (e *Extractor) NTSecond() (int, error) {
	nx := e.m.NX
	length := e.sol.N
	if nx <= 0 || length%nx != 0 {
		return 0, kinerr.Shapef("joint length %d does not fit nx=%d second-order layout", length, nx)
	}
	m := length / nx // 1 + nT + nT^2
	disc := 4*m - 3
	root := int(math.Round(math.Sqrt(float64(disc))))
	if root*root != disc || (root-1)%2 != 0 {
		return 0, kinerr.Shapef("joint length %d has no integer nT for nx=%d second order", length, nx)
	}
	nT := (root - 1) / 2
	if nx*(nT*nT+nT+1) != length {
		return 0, kinerr.Shapef("joint length %d has no integer nT for nx=%d second order", length, nx)
	}
	return nT, nil
}

// inferShape recovers (augmentation order, nT) from the joint length.
// Every second-order length is also a valid first-order length, so the
// active set is the disambiguator: the reading whose nT matches it wins
// (at most one can, the two lengths coincide only at nT=0). Without that
// signal the first-order reading wins; callers holding a second-order
// solution either carry the active set or use the curvature accessors,
// which solve the second-order equation directly.
func (e *Extractor) inferShape() (int, int, error) {
	if e.sol.N == e.m.NX {
		return 0, 0, nil
	}
	nT2, err2 := e.NTSecond()
	nT1, err1 := e.NTFirst()
	if want := e.act.Len(); want > 0 {
		if err2 == nil && nT2 == want {
			return 2, nT2, nil
		}
		if err1 == nil && nT1 == want {
			return 1, nT1, nil
		}
	}
	if err1 == nil {
		return 1, nT1, nil
	}
	if err2 == nil {
		return 2, nT2, nil
	}
	return 0, 0, kinerr.Shapef("joint length %d fits no augmentation for nx=%d", e.sol.N, e.m.NX)
}

// indices resolves an optional subset: empty means all of n.
func indices(subset []int, n int) []int {
	if len(subset) > 0 {
		return subset
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	return all
}

// States returns x at each query time, rows ordered exactly as requested.
func (e *Extractor) States(times []float64, idx []int) [][]float64 {
	sel := indices(idx, e.m.NX)
	out := make([][]float64, len(times))
	for ti, t := range times {
		y := e.sol.At(t)
		row := make([]float64, len(sel))
		for c, i := range sel {
			row[c] = y[i]
		}
		out[ti] = row
	}
	return out
}

// Outputs returns y = C1*x + C2*u(t) + c at each query time.
func (e *Extractor) Outputs(times []float64, idx []int) [][]float64 {
	sel := indices(idx, e.m.NY)
	out := make([][]float64, len(times))
	for ti, t := range times {
		y := e.sol.At(t)
		ut := e.u(t)
		row := make([]float64, len(sel))
		for c, o := range sel {
			v := e.m.C[o]
			for i := 0; i < e.m.NX; i++ {
				v += e.m.C1[o][i] * y[i]
			}
			for i := 0; i < e.m.NU; i++ {
				v += e.m.C2[o][i] * ut[i]
			}
			row[c] = v
		}
		out[ti] = row
	}
	return out
}

// StateSensitivities returns dx/dT per query time, flattened with the
// selected state index fastest: row[c + j*len(sel)] = dx_sel[c]/dT_j.
func (e *Extractor) StateSensitivities(times []float64, idx []int) ([][]float64, error) {
	_, nT, err := e.inferShape()
	if err != nil {
		return nil, err
	}
	nx := e.m.NX
	sel := indices(idx, nx)
	out := make([][]float64, len(times))
	for ti, t := range times {
		y := e.sol.At(t)
		z := y[nx:]
		row := make([]float64, len(sel)*nT)
		for j := 0; j < nT; j++ {
			for c, i := range sel {
				row[c+j*len(sel)] = z[i+j*nx]
			}
		}
		out[ti] = row
	}
	return out, nil
}

// OutputSensitivities returns dy/dT = C1*dx/dT + C2*du/dT per query time,
// output index fastest. du/dT is the indicator of the active control
// columns; u is piecewise constant in everything else.
func (e *Extractor) OutputSensitivities(times []float64, idx []int) ([][]float64, error) {
	_, nT, err := e.inferShape()
	if err != nil {
		return nil, err
	}
	nx := e.m.NX
	sel := indices(idx, e.m.NY)
	ctrlCol := len(e.act.Params) + len(e.act.Seeds)
	out := make([][]float64, len(times))
	for ti, t := range times {
		y := e.sol.At(t)
		z := y[nx:]
		row := make([]float64, len(sel)*nT)
		for j := 0; j < nT; j++ {
			for c, o := range sel {
				v := 0.0
				for i := 0; i < nx; i++ {
					v += e.m.C1[o][i] * z[i+j*nx]
				}
				if j >= ctrlCol {
					ui := e.act.Controls[j-ctrlCol]
					v += e.m.C2[o][ui]
				}
				row[c+j*len(sel)] = v
			}
		}
		out[ti] = row
	}
	return out, nil
}

// StateCurvatures returns d2x/dT2 per query time, flattened with the
// selected state index fastest and T1 before T2.
func (e *Extractor) StateCurvatures(times []float64, idx []int) ([][]float64, error) {
	nT, err := e.NTSecond()
	if err != nil {
		return nil, err
	}
	nx := e.m.NX
	sel := indices(idx, nx)
	out := make([][]float64, len(times))
	for ti, t := range times {
		y := e.sol.At(t)
		w := y[nx+nx*nT:]
		row := make([]float64, len(sel)*nT*nT)
		for j2 := 0; j2 < nT; j2++ {
			for j1 := 0; j1 < nT; j1++ {
				for c, i := range sel {
					row[c+j1*len(sel)+j2*len(sel)*nT] = w[i+j1*nx+j2*nx*nT]
				}
			}
		}
		out[ti] = row
	}
	return out, nil
}

// OutputCurvatures returns d2y/dT2 = C1*d2x/dT2 per query time; the input
// term vanishes because u is affine in its controls.
func (e *Extractor) OutputCurvatures(times []float64, idx []int) ([][]float64, error) {
	nT, err := e.NTSecond()
	if err != nil {
		return nil, err
	}
	nx := e.m.NX
	sel := indices(idx, e.m.NY)
	out := make([][]float64, len(times))
	for ti, t := range times {
		y := e.sol.At(t)
		w := y[nx+nx*nT:]
		row := make([]float64, len(sel)*nT*nT)
		for j2 := 0; j2 < nT; j2++ {
			for j1 := 0; j1 < nT; j1++ {
				for c, o := range sel {
					v := 0.0
					for i := 0; i < nx; i++ {
						v += e.m.C1[o][i] * w[i+j1*nx+j2*nx*nT]
					}
					row[c+j1*len(sel)+j2*len(sel)*nT] = v
				}
			}
		}
		out[ti] = row
	}
	return out, nil
}
