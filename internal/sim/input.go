package sim

import (
	"sort"

	"github.com/avele/reactode/internal/compile"
	"github.com/avele/reactode/internal/kinerr"
	"github.com/avele/reactode/internal/odesys"
)

// buildInput assembles the piecewise-constant input function for one
// condition: model base levels, then the condition's level overrides, then
// the timed steps. Step times are also the solver restart points, so u is
// constant within every integration segment.
func buildInput(m *compile.Model, c Condition) (odesys.Input, []float64, error) {
	base := make([]float64, m.NU)
	copy(base, m.U)
	for name, v := range c.Inputs {
		i := m.InputIndex(name)
		if i < 0 {
			return nil, nil, kinerr.Validationf("condition %q: unknown input %q", c.Name, name)
		}
		base[i] = v
	}

	if len(c.Steps) == 0 {
		u := base
		return func(float64) []float64 { return u }, base, nil
	}

	steps := make([]InputStep, len(c.Steps))
	copy(steps, c.Steps)
	sort.SliceStable(steps, func(a, b int) bool { return steps[a].Time < steps[b].Time })

	// One full level vector per breakpoint, each carrying every step up to
	// and including its time.
	times := make([]float64, 0, len(steps))
	levels := make([][]float64, 0, len(steps))
	cur := base
	for _, st := range steps {
		i := m.InputIndex(st.Input)
		if i < 0 {
			return nil, nil, kinerr.Validationf("condition %q: step targets unknown input %q", c.Name, st.Input)
		}
		next := make([]float64, len(cur))
		copy(next, cur)
		next[i] = st.Value
		if len(times) > 0 && times[len(times)-1] == st.Time {
			levels[len(levels)-1] = next
		} else {
			times = append(times, st.Time)
			levels = append(levels, next)
		}
		cur = next
	}

	u := func(t float64) []float64 {
		// Index of the last breakpoint at or before t.
		i := sort.SearchFloat64s(times, t)
		if i < len(times) && times[i] == t {
			return levels[i]
		}
		if i == 0 {
			return base
		}
		return levels[i-1]
	}
	return u, base, nil
}

// stepTimes lists the times u changes, for the solver's restart schedule.
func stepTimes(c Condition) []float64 {
	out := make([]float64, 0, len(c.Steps)+len(c.Discontinuities))
	for _, st := range c.Steps {
		out = append(out, st.Time)
	}
	out = append(out, c.Discontinuities...)
	return out
}
