package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avele/reactode/internal/kinerr"
	"github.com/avele/reactode/internal/odesys"
)

// decay is y' = -y with exact solution exp(-t).
func decaySystem() *odesys.System {
	return &odesys.System{
		N: 1,
		Derivative: func(t float64, y []float64) []float64 {
			return []float64{-y[0]}
		},
		Jacobian: func(t float64, y []float64) []float64 {
			return []float64{-1}
		},
	}
}

func TestRosenbrockDecay(t *testing.T) {
	sol, stats, err := Integrate(decaySystem(), []float64{1}, 0, 5, nil, DefaultConfig(), NewRosenbrock23())
	require.NoError(t, err)
	assert.Positive(t, stats.Steps)

	for _, tt := range []float64{0, 0.5, 1.3, 2.7, 5} {
		got := sol.At(tt)[0]
		assert.InDelta(t, math.Exp(-tt), got, 1e-4, "t=%g", tt)
	}
}

func TestRK45Decay(t *testing.T) {
	sol, _, err := Integrate(decaySystem(), []float64{1}, 0, 5, nil, DefaultConfig(), NewRK45())
	require.NoError(t, err)
	for _, tt := range []float64{0.25, 1.9, 4.4} {
		assert.InDelta(t, math.Exp(-tt), sol.At(tt)[0], 1e-5, "t=%g", tt)
	}
}

func TestRosenbrockStiff(t *testing.T) {
	// Classic stiff test: y' = -1000*(y - cos(t)) - sin(t); exact cos(t)
	// for y(0)=1 up to a fast transient.
	sys := &odesys.System{
		N: 1,
		Derivative: func(tt float64, y []float64) []float64 {
			return []float64{-1000*(y[0]-math.Cos(tt)) - math.Sin(tt)}
		},
		Jacobian: func(tt float64, y []float64) []float64 {
			return []float64{-1000}
		},
	}
	cfg := DefaultConfig()
	cfg.RelTol = 1e-6
	cfg.AbsTol = []float64{1e-8}
	sol, stats, err := Integrate(sys, []float64{1}, 0, 3, nil, cfg, NewRosenbrock23())
	require.NoError(t, err)
	assert.InDelta(t, math.Cos(3), sol.At(3)[0], 1e-3)
	// The stiff method must not need anywhere near 1000 steps per unit time.
	assert.Less(t, stats.Steps, 3000)
}

func TestRosenbrockNonAutonomous(t *testing.T) {
	// y' = cos(t) has no state dependence at all; accuracy and step counts
	// here hinge on the df/dt term of the step formulas.
	sys := &odesys.System{
		N: 1,
		Derivative: func(tt float64, y []float64) []float64 {
			return []float64{math.Cos(tt)}
		},
		Jacobian: func(tt float64, y []float64) []float64 {
			return []float64{0}
		},
	}
	sol, stats, err := Integrate(sys, []float64{0}, 0, 6, nil, DefaultConfig(), NewRosenbrock23())
	require.NoError(t, err)
	for _, tt := range []float64{1, 3, 6} {
		assert.InDelta(t, math.Sin(tt), sol.At(tt)[0], 1e-4, "t=%g", tt)
	}
	assert.Less(t, stats.Steps, 500)
}

func TestDiscontinuityRestart(t *testing.T) {
	// Forcing switches sign at t=1; declaring the switch time keeps the
	// controller from grinding against the corner.
	force := func(tt float64) float64 {
		if tt < 1 {
			return 1
		}
		return -1
	}
	sys := &odesys.System{
		N: 1,
		Derivative: func(tt float64, y []float64) []float64 {
			return []float64{force(tt)}
		},
		Jacobian: func(tt float64, y []float64) []float64 {
			return []float64{0}
		},
	}
	sol, _, err := Integrate(sys, []float64{0}, 0, 2, []float64{1}, DefaultConfig(), NewRosenbrock23())
	require.NoError(t, err)

	// y ramps to 1 at t=1 then back to 0 at t=2.
	assert.InDelta(t, 1.0, sol.At(1)[0], 1e-6)
	assert.InDelta(t, 0.0, sol.At(2)[0], 1e-6)

	// The discontinuity time is an exact knot.
	found := false
	for _, kt := range sol.Times {
		if kt == 1 {
			found = true
		}
	}
	assert.True(t, found, "discontinuity time missing from knots")
}

func TestStepUnderflowFails(t *testing.T) {
	// A derivative that blows up forces the controller to shrink the step
	// below MinStep; that must surface as an integration failure carrying
	// the last reached time, not a silent clamp.
	sys := &odesys.System{
		N: 1,
		Derivative: func(tt float64, y []float64) []float64 {
			return []float64{y[0] * y[0]}
		},
		Jacobian: func(tt float64, y []float64) []float64 {
			return []float64{2 * y[0]}
		},
	}
	cfg := DefaultConfig()
	cfg.MinStep = 1e-10
	// y' = y^2 with y(0)=1 blows up at t=1.
	_, stats, err := Integrate(sys, []float64{1}, 0, 2, nil, cfg, NewRosenbrock23())
	require.Error(t, err)
	assert.True(t, errors.Is(err, kinerr.ErrIntegration), "got %v", err)

	var ie *kinerr.IntegrationError
	require.True(t, errors.As(err, &ie))
	assert.Less(t, ie.LastTime, 1.05)
	assert.InDelta(t, ie.LastTime, stats.LastTime, 1e-12)
}

func TestSolutionEndpoints(t *testing.T) {
	sol, _, err := Integrate(decaySystem(), []float64{1}, 0, 1, nil, DefaultConfig(), NewRK45())
	require.NoError(t, err)
	assert.Equal(t, 0.0, sol.Start())
	assert.Equal(t, 1.0, sol.End())
	// Out-of-range queries pin to the endpoints.
	assert.InDelta(t, 1.0, sol.At(-5)[0], 1e-12)
	assert.InDelta(t, math.Exp(-1), sol.At(7)[0], 1e-6)
}

func TestPerComponentAbsTol(t *testing.T) {
	// Two decoupled decays at very different magnitudes; the per-component
	// absolute tolerance keeps the small component resolved.
	sys := &odesys.System{
		N: 2,
		Derivative: func(tt float64, y []float64) []float64 {
			return []float64{-y[0], -y[1]}
		},
		Jacobian: func(tt float64, y []float64) []float64 {
			return []float64{-1, 0, 0, -1}
		},
	}
	cfg := DefaultConfig()
	cfg.AbsTol = []float64{1e-6, 1e-12}
	sol, _, err := Integrate(sys, []float64{1, 1e-6}, 0, 2, nil, cfg, NewRosenbrock23())
	require.NoError(t, err)
	got := sol.At(2)
	assert.InDelta(t, math.Exp(-2), got[0], 1e-4)
	assert.InDelta(t, 1e-6*math.Exp(-2), got[1], 1e-9)
}
