package symexpr

import (
	"fmt"
	"math"
)

// EvalFunc evaluates a compiled expression against a value slice laid out
// per the symbol index the expression was compiled with.
type EvalFunc func(vals []float64) float64

// Compile lowers e into a closure over a slot index. Every free symbol of
// e must appear in index; compiling an unbound symbol is an error, not a
// runtime surprise.
func Compile(e Expr, index map[string]int) (EvalFunc, error) {
	switch v := e.(type) {
	case Const:
		c := float64(v)
		return func([]float64) float64 { return c }, nil
	case Symbol:
		slot, ok := index[string(v)]
		if !ok {
			return nil, fmt.Errorf("symexpr: symbol %q has no slot", string(v))
		}
		return func(vals []float64) float64 { return vals[slot] }, nil
	case *Add:
		fs, err := compileAll(v.Terms, index)
		if err != nil {
			return nil, err
		}
		return func(vals []float64) float64 {
			sum := 0.0
			for _, f := range fs {
				sum += f(vals)
			}
			return sum
		}, nil
	case *Mul:
		fs, err := compileAll(v.Factors, index)
		if err != nil {
			return nil, err
		}
		return func(vals []float64) float64 {
			prod := 1.0
			for _, f := range fs {
				prod *= f(vals)
			}
			return prod
		}, nil
	case *Pow:
		bf, err := Compile(v.Base, index)
		if err != nil {
			return nil, err
		}
		if ec, ok := v.Exp.(Const); ok {
			// Integer powers dominate mass-action rate laws.
			if n := int(ec); float64(n) == float64(ec) && n >= -4 && n <= 4 {
				return func(vals []float64) float64 { return ipow(bf(vals), n) }, nil
			}
			exp := float64(ec)
			return func(vals []float64) float64 { return math.Pow(bf(vals), exp) }, nil
		}
		ef, err := Compile(v.Exp, index)
		if err != nil {
			return nil, err
		}
		return func(vals []float64) float64 { return math.Pow(bf(vals), ef(vals)) }, nil
	case *Call:
		af, err := Compile(v.Arg, index)
		if err != nil {
			return nil, err
		}
		fn := callFns[v.Fn]
		return func(vals []float64) float64 { return fn(af(vals)) }, nil
	}
	return nil, fmt.Errorf("symexpr: cannot compile %T", e)
}

func compileAll(exprs []Expr, index map[string]int) ([]EvalFunc, error) {
	fs := make([]EvalFunc, len(exprs))
	for i, e := range exprs {
		f, err := Compile(e, index)
		if err != nil {
			return nil, err
		}
		fs[i] = f
	}
	return fs, nil
}

func ipow(b float64, n int) float64 {
	if n < 0 {
		return 1 / ipow(b, -n)
	}
	p := 1.0
	for i := 0; i < n; i++ {
		p *= b
	}
	return p
}
