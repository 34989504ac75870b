// Package sim orchestrates simulation runs: it binds a compiled model and
// an option set into joint ODE systems, integrates one system per
// experimental condition, and hands back lazy extractors over the dense
// solutions. Conditions are independent and run concurrently.
package sim

import (
	"github.com/avele/reactode/internal/integrators"
	"github.com/avele/reactode/internal/result"
)

// InputStep changes one input's level at a declared discontinuity time.
type InputStep struct {
	Time  float64 `yaml:"time"`
	Input string  `yaml:"input"`
	Value float64 `yaml:"value"`
}

// Condition is one experimental condition.
type Condition struct {
	Name      string  `yaml:"name"`
	FinalTime float64 `yaml:"final_time"`

	// Seeds overrides initial state amounts by natural species name.
	Seeds map[string]float64 `yaml:"seeds,omitempty"`

	// Inputs overrides the base input levels by natural species name.
	Inputs map[string]float64 `yaml:"inputs,omitempty"`

	// Steps lists input level changes; their times are treated as
	// discontinuities automatically.
	Steps []InputStep `yaml:"steps,omitempty"`

	// Discontinuities lists additional solver restart times.
	Discontinuities []float64 `yaml:"discontinuities,omitempty"`
}

// Options selects the differentiation variables and solver behavior for a
// batch of conditions.
type Options struct {
	// Active* name the parameters/seeds/controls that make up T, in the
	// order given. A nil slice selects the whole category; an empty
	// non-nil slice selects none.
	ActiveParams   []string `yaml:"active_params,omitempty"`
	ActiveSeeds    []string `yaml:"active_seeds,omitempty"`
	ActiveControls []string `yaml:"active_controls,omitempty"`

	// Order is the augmentation order: 0 states only, 1 adds first-order
	// sensitivities, 2 adds second-order curvatures.
	Order int `yaml:"order"`

	RelTol float64   `yaml:"reltol"`
	AbsTol []float64 `yaml:"abstol,omitempty"`

	// Solver picks the method: "rosenbrock23" (default, stiff) or "rk45".
	Solver string `yaml:"solver"`

	Verbose bool `yaml:"verbose"`
}

// ConditionResult carries one condition's outcome. Exactly one of Err and
// Result is set; a failed condition never disturbs its siblings.
type ConditionResult struct {
	Condition Condition
	Result    *result.Extractor
	Stats     *integrators.Stats
	Err       error
}
