package sim

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/avele/reactode/internal/compile"
	"github.com/avele/reactode/internal/deriv"
	"github.com/avele/reactode/internal/integrators"
	"github.com/avele/reactode/internal/kinerr"
	"github.com/avele/reactode/internal/odesys"
	"github.com/avele/reactode/internal/result"
)

// Simulator runs batches of conditions against one compiled model.
type Simulator struct {
	m   *compile.Model
	log *zap.Logger
}

// NewSimulator binds a model; a nil logger is replaced with a no-op one.
func NewSimulator(m *compile.Model, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{m: m, log: log}
}

// Run integrates every condition concurrently and returns one result per
// condition, in order. A condition that fails sets its slot's Err and
// leaves the siblings untouched; Run itself errors only on setup problems
// shared by all conditions.
func (s *Simulator) Run(ctx context.Context, conds []Condition, opts Options) ([]ConditionResult, error) {
	if opts.Order < 0 || opts.Order > 2 {
		return nil, kinerr.Unsupportedf("augmentation order %d (supported 0..2)", opts.Order)
	}

	act, err := s.resolveActive(opts)
	if err != nil {
		return nil, err
	}

	method, err := pickMethod(opts.Solver)
	if err != nil {
		return nil, err
	}

	// The augmented Jacobians need derivative stacks one order deeper than
	// the augmentation itself.
	d, err := deriv.New(s.m, act, opts.Order+1)
	if err != nil {
		return nil, err
	}

	log := s.log
	if !opts.Verbose {
		log = zap.NewNop()
	}
	log.Info("starting batch",
		zap.String("model", s.m.Name),
		zap.Int("conditions", len(conds)),
		zap.Int("order", opts.Order),
		zap.Int("nT", act.Len()),
		zap.String("solver", method.Name()))

	out := make([]ConditionResult, len(conds))
	var wg sync.WaitGroup
	for i, c := range conds {
		wg.Add(1)
		go func(slot int, c Condition) {
			defer wg.Done()
			out[slot] = s.runOne(ctx, c, opts, act, d, method, log)
		}(i, c)
	}
	wg.Wait()
	return out, nil
}

func (s *Simulator) runOne(ctx context.Context, c Condition, opts Options, act deriv.Active, d *deriv.Derivs, method integrators.Method, log *zap.Logger) ConditionResult {
	res := ConditionResult{Condition: c}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if c.FinalTime <= 0 {
		res.Err = kinerr.Validationf("condition %q: final time %g must be positive", c.Name, c.FinalTime)
		return res
	}

	seeds := make([]float64, s.m.NX)
	copy(seeds, s.m.Seeds)
	for name, v := range c.Seeds {
		i := s.m.StateIndex(name)
		if i < 0 {
			res.Err = kinerr.Validationf("condition %q: unknown species %q in seeds", c.Name, name)
			return res
		}
		seeds[i] = v
	}

	u, _, err := buildInput(s.m, c)
	if err != nil {
		res.Err = err
		return res
	}

	var sys *odesys.System
	switch opts.Order {
	case 0:
		sys, err = odesys.State(d, s.m.K, u)
	case 1:
		sys, err = odesys.Sensitivity(d, s.m.K, u)
	default:
		sys, err = odesys.Curvature(d, s.m.K, u)
	}
	if err != nil {
		res.Err = err
		return res
	}

	cfg := integrators.DefaultConfig()
	if opts.RelTol > 0 {
		cfg.RelTol = opts.RelTol
	}
	if len(opts.AbsTol) > 0 {
		cfg.AbsTol = opts.AbsTol
	}

	y0 := odesys.InitialJoint(s.m, act, seeds, opts.Order)
	sol, stats, err := integrators.Integrate(sys, y0, 0, c.FinalTime, stepTimes(c), cfg, method)
	res.Stats = stats
	if err != nil {
		log.Warn("condition failed",
			zap.String("condition", c.Name),
			zap.Error(err))
		res.Err = err
		return res
	}
	log.Info("condition integrated",
		zap.String("condition", c.Name),
		zap.Int("steps", stats.Steps),
		zap.Int("rejected", stats.Rejected),
		zap.Int("evals", stats.Evals))
	res.Result = result.New(sol, s.m, act, u)
	return res
}

// resolveActive maps the option's natural names to model indices. A nil
// slice selects the whole category; an empty non-nil slice selects none.
func (s *Simulator) resolveActive(opts Options) (deriv.Active, error) {
	var act deriv.Active
	var err error
	if act.Params, err = resolve(opts.ActiveParams, s.m.NK, s.m.ParamIndex, "parameter"); err != nil {
		return act, err
	}
	if act.Seeds, err = resolve(opts.ActiveSeeds, s.m.NX, s.m.StateIndex, "species"); err != nil {
		return act, err
	}
	if act.Controls, err = resolve(opts.ActiveControls, s.m.NU, s.m.InputIndex, "input"); err != nil {
		return act, err
	}
	return act, nil
}

func resolve(names []string, n int, lookup func(string) int, kind string) ([]int, error) {
	if names == nil {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	out := make([]int, 0, len(names))
	for _, name := range names {
		i := lookup(name)
		if i < 0 {
			return nil, kinerr.Validationf("unknown active %s %q", kind, name)
		}
		out = append(out, i)
	}
	return out, nil
}

func pickMethod(name string) (integrators.Method, error) {
	switch name {
	case "", "rosenbrock23":
		return integrators.NewRosenbrock23(), nil
	case "rk45":
		return integrators.NewRK45(), nil
	default:
		return nil, kinerr.Validationf("unknown solver %q", name)
	}
}
