package integrators

import (
	"math"
	"sort"

	"github.com/avele/reactode/internal/kinerr"
	"github.com/avele/reactode/internal/odesys"
)

// Method takes one trial step and reports its embedded local-error
// estimate per component.
type Method interface {
	Name() string

	// ErrOrder is the order of the embedded error estimator; the driver
	// uses 1/(ErrOrder+1) as the step-size exponent.
	ErrOrder() int

	// Step advances y by h from t, returning the new state, the local
	// error estimate, and the number of derivative evaluations spent.
	Step(sys *odesys.System, t float64, y []float64, h float64) (yNew, errEst []float64, evals int, err error)
}

const (
	safety   = 0.9
	minScale = 0.2
	maxScale = 10.0
)

// Integrate advances sys from t0 to tEnd, restarting the step size at each
// declared discontinuity so the controller never grinds against a corner.
// The returned Solution is dense over [t0, tEnd].
func Integrate(sys *odesys.System, y0 []float64, t0, tEnd float64, discontinuities []float64, cfg Config, m Method) (*Solution, *Stats, error) {
	if tEnd <= t0 {
		return nil, nil, kinerr.Validationf("integration interval [%g, %g] is empty", t0, tEnd)
	}

	sol := newSolution(sys.N)
	stats := &Stats{LastTime: t0}

	y := make([]float64, len(y0))
	copy(y, y0)
	f := sys.Derivative(t0, y)
	stats.Evals++
	sol.append(t0, y, f)

	for _, seg := range segments(t0, tEnd, discontinuities) {
		if err := integrateSegment(sys, sol, stats, y, seg[0], seg[1], cfg, m); err != nil {
			return sol, stats, err
		}
	}
	return sol, stats, nil
}

// segments splits [t0, tEnd] at the in-range discontinuity times.
func segments(t0, tEnd float64, discontinuities []float64) [][2]float64 {
	cuts := make([]float64, 0, len(discontinuities))
	for _, d := range discontinuities {
		if d > t0 && d < tEnd {
			cuts = append(cuts, d)
		}
	}
	sort.Float64s(cuts)
	out := make([][2]float64, 0, len(cuts)+1)
	prev := t0
	for _, c := range cuts {
		if c == prev {
			continue
		}
		out = append(out, [2]float64{prev, c})
		prev = c
	}
	out = append(out, [2]float64{prev, tEnd})
	return out
}

// integrateSegment advances y in place from ta to tb, appending accepted
// knots to sol.
func integrateSegment(sys *odesys.System, sol *Solution, stats *Stats, y []float64, ta, tb float64, cfg Config, m Method) error {
	span := tb - ta
	h := cfg.InitialStep
	if h <= 0 {
		h = span / 100
	}
	maxStep := cfg.MaxStep
	if maxStep <= 0 {
		maxStep = span / 10
	}
	if h > maxStep {
		h = maxStep
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultConfig().MaxSteps
	}

	t := ta
	exp := 1.0 / float64(m.ErrOrder()+1)

	for steps := 0; t < tb; steps++ {
		if steps >= maxSteps {
			return &kinerr.IntegrationError{LastTime: t, Reason: "step budget exhausted"}
		}
		lastStep := false
		if h >= tb-t {
			h = tb - t
			lastStep = true
		}

		yNew, errEst, evals, err := m.Step(sys, t, y, h)
		stats.Evals += evals
		if err != nil {
			return &kinerr.IntegrationError{LastTime: t, Reason: err.Error()}
		}

		norm := scaledNorm(errEst, y, yNew, cfg)
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			norm = 2 // force rejection and shrink
		}

		if norm <= 1 {
			if lastStep {
				t = tb
			} else {
				t += h
			}
			copy(y, yNew)
			f := sys.Derivative(t, y)
			stats.Evals++
			sol.append(t, y, f)
			stats.Steps++
			stats.LastTime = t

			scale := maxScale
			if norm > 0 {
				scale = math.Min(maxScale, safety*math.Pow(norm, -exp))
			}
			h = math.Min(h*scale, maxStep)
		} else {
			stats.Rejected++
			scale := math.Max(minScale, safety*math.Pow(norm, -exp))
			h *= scale
		}

		if h < cfg.MinStep {
			return &kinerr.IntegrationError{LastTime: t, Reason: "step size underflow"}
		}
	}
	return nil
}

// scaledNorm is the RMS of the error estimate against the per-component
// scale abstol_i + reltol*max(|y_i|, |yNew_i|).
func scaledNorm(errEst, y, yNew []float64, cfg Config) float64 {
	sum := 0.0
	for i := range errEst {
		sc := cfg.absTolAt(i) + cfg.RelTol*math.Max(math.Abs(y[i]), math.Abs(yNew[i]))
		r := errEst[i] / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(errEst)))
}
