// Package deriv compiles the canonical model's rate laws into numeric
// derivative functions f, df/dx, df/dT and the higher-order stacks needed
// by the augmented ODE systems.
//
// Flattening contract: differentiating a flattened stack appends one
// trailing dimension, and the leading (state) index varies fastest.
// Element (i, j1, ..., jm) of an nx x d1 x ... x dm stack lives at
// i + j1*nx + j2*nx*d1 + ... The ODE system builder and the result
// extractor rely on exactly this layout.
package deriv

import (
	"github.com/avele/reactode/internal/compile"
	"github.com/avele/reactode/internal/kinerr"
	"github.com/avele/reactode/internal/symexpr"
)

// MaxOrder is the practical cap on symbolic differentiation depth; the
// cost of the stacks grows combinatorially past it.
const MaxOrder = 3

// Active selects the differentiation variables T, ordered parameters
// first, then seeds, then input controls.
type Active struct {
	Params   []int // indices into the model's K vector
	Seeds    []int // state indices whose seed is active
	Controls []int // input indices whose level is active
}

// Len is nT.
func (a Active) Len() int { return len(a.Params) + len(a.Seeds) + len(a.Controls) }

// syms returns the symbolic variable backing each T column; seeds have no
// symbol in f and differentiate to zero.
func (a Active) syms(m *compile.Model) []string {
	out := make([]string, 0, a.Len())
	for _, ki := range a.Params {
		out = append(out, m.KSyms[ki])
	}
	for range a.Seeds {
		out = append(out, "")
	}
	for _, ui := range a.Controls {
		out = append(out, m.USyms[ui])
	}
	return out
}

// Func evaluates one compiled derivative stack at (t, x, u) with the
// condition's rate parameters k. Implementations are pure and safe for
// concurrent use.
type Func func(t float64, x, u, k []float64) []float64

// Derivs bundles the compiled derivative stacks for one (model, active
// set, order) combination.
type Derivs struct {
	Order  int
	NX, NU, NT int

	F  Func // nx
	Fx Func // nx*nx
	FT Func // nx*nT

	Fxx Func // nx*nx*nx
	FTx Func // nx*nx*nT: [i + l*nx + j*nx*nx] = d2f_i/(dx_l dT_j)
	FTT Func // nx*nT*nT

	Fxxx Func // nx*nx*nx*nx
	FTxx Func // nx*nx*nx*nT
	FTTx Func // nx*nx*nT*nT
	FTTT Func // nx*nT*nT*nT
}

// New symbolically differentiates f = S*r up to order and compiles every
// stack once. Orders above MaxOrder fail fast.
func New(m *compile.Model, act Active, order int) (*Derivs, error) {
	if order < 0 || order > MaxOrder {
		return nil, kinerr.Unsupportedf("derivative order %d (supported 0..%d)", order, MaxOrder)
	}

	d := &Derivs{Order: order, NX: m.NX, NU: m.NU, NT: act.Len()}

	// f_i = sum_j S_ij * r_j.
	f := make([]symexpr.Expr, m.NX)
	for i := range f {
		f[i] = symexpr.Const(0)
	}
	for _, e := range m.Stoich {
		f[e.Species] = symexpr.NewAdd(f[e.Species],
			symexpr.NewMul(symexpr.Const(e.Coeff), m.Rates[e.Reaction]))
	}

	xVars := make([]string, m.NX)
	copy(xVars, m.XSyms)
	tVars := act.syms(m)

	index := slotIndex(m)
	cc := &compiler{m: m, index: index}

	var err error
	if d.F, err = cc.compileStack(f); err != nil {
		return nil, err
	}
	if order < 1 {
		return d, nil
	}

	fx := diffStack(f, xVars)
	fT := diffStack(f, tVars)
	if d.Fx, err = cc.compileStack(fx); err != nil {
		return nil, err
	}
	if d.FT, err = cc.compileStack(fT); err != nil {
		return nil, err
	}
	if order < 2 {
		return d, nil
	}

	fxx := diffStack(fx, xVars)
	fTx := diffStack(fx, tVars)
	fTT := diffStack(fT, tVars)
	if d.Fxx, err = cc.compileStack(fxx); err != nil {
		return nil, err
	}
	if d.FTx, err = cc.compileStack(fTx); err != nil {
		return nil, err
	}
	if d.FTT, err = cc.compileStack(fTT); err != nil {
		return nil, err
	}
	if order < 3 {
		return d, nil
	}

	if d.Fxxx, err = cc.compileStack(diffStack(fxx, xVars)); err != nil {
		return nil, err
	}
	if d.FTxx, err = cc.compileStack(diffStack(fxx, tVars)); err != nil {
		return nil, err
	}
	if d.FTTx, err = cc.compileStack(diffStack(fTx, tVars)); err != nil {
		return nil, err
	}
	if d.FTTT, err = cc.compileStack(diffStack(fTT, tVars)); err != nil {
		return nil, err
	}
	return d, nil
}

// diffStack appends one trailing dimension: out[j*len(in)+i] is the
// derivative of in[i] with respect to vars[j]. An empty var name (a seed)
// differentiates to zero.
func diffStack(in []symexpr.Expr, vars []string) []symexpr.Expr {
	out := make([]symexpr.Expr, len(in)*len(vars))
	for j, v := range vars {
		for i, e := range in {
			if v == "" {
				out[j*len(in)+i] = symexpr.Const(0)
				continue
			}
			out[j*len(in)+i] = e.Diff(v)
		}
	}
	return out
}

// slotIndex lays out the evaluation vector as [t, x..., u..., k...].
func slotIndex(m *compile.Model) map[string]int {
	index := make(map[string]int, 1+m.NX+m.NU+m.NK)
	index["t"] = 0
	for i, s := range m.XSyms {
		index[s] = 1 + i
	}
	for i, s := range m.USyms {
		index[s] = 1 + m.NX + i
	}
	for i, s := range m.KSyms {
		index[s] = 1 + m.NX + m.NU + i
	}
	return index
}

type compiler struct {
	m     *compile.Model
	index map[string]int
}

func (c *compiler) compileStack(exprs []symexpr.Expr) (Func, error) {
	fns := make([]symexpr.EvalFunc, len(exprs))
	for i, e := range exprs {
		f, err := symexpr.Compile(e, c.index)
		if err != nil {
			return nil, err
		}
		fns[i] = f
	}
	nx, nu, nk := c.m.NX, c.m.NU, c.m.NK
	return func(t float64, x, u, k []float64) []float64 {
		vals := make([]float64, 1+nx+nu+nk)
		vals[0] = t
		copy(vals[1:], x)
		copy(vals[1+nx:], u)
		copy(vals[1+nx+nu:], k)
		out := make([]float64, len(fns))
		for i, f := range fns {
			out[i] = f(vals)
		}
		return out
	}, nil
}
