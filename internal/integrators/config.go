// Package integrators advances flat joint ODE vectors with adaptive
// stiff-capable methods, dense output, and restarts at declared
// discontinuity times.
package integrators

// Config tunes the adaptive drivers.
type Config struct {
	// InitialStep, if > 0, is the first step size; otherwise a conservative
	// default is derived from the interval.
	InitialStep float64

	// MinStep is the underflow threshold: needing a smaller step aborts
	// with an integration failure instead of clamping.
	MinStep float64

	// MaxStep bounds step growth. Zero means a tenth of the interval.
	MaxStep float64

	// RelTol is the relative tolerance shared by all components.
	RelTol float64

	// AbsTol holds per-component absolute tolerances; a single entry is
	// broadcast over the joint vector.
	AbsTol []float64

	// MaxSteps bounds the accepted-step count per segment.
	MaxSteps int
}

// DefaultConfig mirrors the tolerances a typical kinetics run wants.
func DefaultConfig() Config {
	return Config{
		MinStep:  1e-14,
		RelTol:   1e-6,
		AbsTol:   []float64{1e-9},
		MaxSteps: 100000,
	}
}

// absTolAt resolves the per-component absolute tolerance.
func (c Config) absTolAt(i int) float64 {
	if len(c.AbsTol) == 0 {
		return 1e-9
	}
	if i < len(c.AbsTol) {
		return c.AbsTol[i]
	}
	return c.AbsTol[len(c.AbsTol)-1]
}

// Stats reports the work one integration performed.
type Stats struct {
	Steps    int
	Rejected int
	Evals    int
	LastTime float64
}
