package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avele/reactode/internal/compile"
	"github.com/avele/reactode/internal/deriv"
	"github.com/avele/reactode/internal/integrators"
	"github.com/avele/reactode/internal/kinerr"
)

// constSolution fabricates a dense solution holding the same joint vector
// over [0, 10].
func constSolution(y []float64) *integrators.Solution {
	zero := make([]float64, len(y))
	return &integrators.Solution{
		N:      len(y),
		Times:  []float64{0, 10},
		States: [][]float64{y, y},
		Derivs: [][]float64{zero, zero},
	}
}

func model3(ny int) *compile.Model {
	m := &compile.Model{NX: 3, NY: ny}
	m.C1 = make([][]float64, ny)
	m.C2 = make([][]float64, ny)
	m.C = make([]float64, ny)
	for i := range m.C1 {
		m.C1[i] = make([]float64, 3)
		m.C2[i] = []float64{}
	}
	return m
}

func TestNTRecovery(t *testing.T) {
	m := model3(0)

	// nx=3, nT=2: first-order joint length 3 + 3*2 = 9.
	e := New(constSolution(make([]float64, 9)), m, deriv.Active{}, nil)
	nT, err := e.NTFirst()
	require.NoError(t, err)
	assert.Equal(t, 2, nT)

	// Second-order joint length 9 + 3*4 = 21.
	e = New(constSolution(make([]float64, 21)), m, deriv.Active{}, nil)
	nT, err = e.NTSecond()
	require.NoError(t, err)
	assert.Equal(t, 2, nT)

	// A length fitting no rank is a shape mismatch.
	e = New(constSolution(make([]float64, 10)), m, deriv.Active{}, nil)
	_, err = e.NTFirst()
	assert.True(t, errors.Is(err, kinerr.ErrShapeMismatch), "got %v", err)
	_, _, err = e.inferShape()
	assert.True(t, errors.Is(err, kinerr.ErrShapeMismatch), "got %v", err)

	// len 12 = 3 + 3*3: first order nT=3 but no second-order fit.
	e = New(constSolution(make([]float64, 12)), m, deriv.Active{}, nil)
	order, nT, err := e.inferShape()
	require.NoError(t, err)
	assert.Equal(t, 1, order)
	assert.Equal(t, 3, nT)

	// len 21 is ambiguous (first order nT=6, second order nT=2); without an
	// active set the first-order reading wins.
	e = New(constSolution(make([]float64, 21)), m, deriv.Active{}, nil)
	order, nT, err = e.inferShape()
	require.NoError(t, err)
	assert.Equal(t, 1, order)
	assert.Equal(t, 6, nT)

	// A two-variable active set picks the second-order reading instead.
	e = New(constSolution(make([]float64, 21)), m, deriv.Active{Params: []int{0, 1}}, nil)
	order, nT, err = e.inferShape()
	require.NoError(t, err)
	assert.Equal(t, 2, order)
	assert.Equal(t, 2, nT)
}

func TestStatesAndSubsets(t *testing.T) {
	m := model3(0)
	e := New(constSolution([]float64{7, 8, 9}), m, deriv.Active{}, nil)

	rows := e.States([]float64{5, 0, 2}, nil) // unsorted times preserved
	require.Len(t, rows, 3)
	assert.Equal(t, []float64{7, 8, 9}, rows[0])

	rows = e.States([]float64{1}, []int{2, 0})
	assert.Equal(t, []float64{9, 7}, rows[0])
}

func TestOutputIdentity(t *testing.T) {
	// 1 state, 1 output, C1=1, C2 empty, c=0: y(t) == x(t) at all times.
	m := &compile.Model{NX: 1, NY: 1, C1: [][]float64{{1}}, C2: [][]float64{{}}, C: []float64{0}}
	sol := &integrators.Solution{
		N:      1,
		Times:  []float64{0, 1, 2},
		States: [][]float64{{1}, {0.5}, {0.25}},
		Derivs: [][]float64{{-1}, {-0.5}, {-0.25}},
	}
	e := New(sol, m, deriv.Active{}, nil)

	times := []float64{0, 0.3, 1, 1.7, 2}
	ys := e.Outputs(times, nil)
	for i, tt := range times {
		x := sol.At(tt)[0]
		assert.InDelta(t, x, ys[i][0], 1e-15, "t=%g", tt)
	}
}

func TestSensitivitySlicing(t *testing.T) {
	// nx=2, nT=2 first-order joint: [x0 x1 | z(0,0) z(1,0) z(0,1) z(1,1)].
	m := &compile.Model{NX: 2}
	joint := []float64{1, 2, 10, 11, 12, 13}
	e := New(constSolution(joint), m, deriv.Active{}, nil)

	rows, err := e.StateSensitivities([]float64{3}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12, 13}, rows[0])

	// Subset keeps the requested state order, T index outermost.
	rows, err = e.StateSensitivities([]float64{3}, []int{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 13}, rows[0])
}

func TestCurvatureSlicing(t *testing.T) {
	// nx=1, nT=2 second-order joint: [x | z(2) | w(4)]. The active set is
	// what marks the solution as second order; length 7 alone also reads as
	// first order with nT=6.
	m := &compile.Model{NX: 1}
	joint := []float64{5, 1, 2, 100, 101, 102, 103}
	e := New(constSolution(joint), m, deriv.Active{Params: []int{0, 1}}, nil)

	rows, err := e.StateCurvatures([]float64{0}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 102, 103}, rows[0])

	// Sensitivities off the same second-order solution use the true nT.
	sens, err := e.StateSensitivities([]float64{0}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, sens[0])
}

func TestEmptyTWindows(t *testing.T) {
	// nT=0: sensitivity and curvature rows are zero-length, plain states
	// still extract.
	m := &compile.Model{NX: 2}
	e := New(constSolution([]float64{4, 5}), m, deriv.Active{}, nil)

	sens, err := e.StateSensitivities([]float64{1}, nil)
	require.NoError(t, err)
	assert.Empty(t, sens[0])

	curv, err := e.StateCurvatures([]float64{1}, nil)
	require.NoError(t, err)
	assert.Empty(t, curv[0])
}
