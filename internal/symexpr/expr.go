// Package symexpr is a minimal symbolic kernel for reaction rate laws:
// tagged expression trees with simplifying constructors, differentiation,
// substitution by tree rewriting, and compilation into numeric closures.
//
// Supported operations are +, -, *, /, ^ and the calls exp, log, sqrt,
// sin, cos. Constants are float64; there is no exact arithmetic.
package symexpr

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Expr is an immutable expression tree node.
type Expr interface {
	// Diff returns the partial derivative with respect to the named symbol.
	Diff(name string) Expr

	// Subst replaces every occurrence of the named symbol by repl.
	Subst(name string, repl Expr) Expr

	// Free adds the free symbols of the expression to set.
	Free(set map[string]struct{})

	// Eval evaluates under env; a missing symbol is an error.
	Eval(env map[string]float64) (float64, error)

	String() string
}

// Const is a numeric literal.
type Const float64

func (c Const) Diff(string) Expr            { return Const(0) }
func (c Const) Subst(string, Expr) Expr     { return c }
func (c Const) Free(map[string]struct{})    {}
func (c Const) Eval(map[string]float64) (float64, error) { return float64(c), nil }
func (c Const) String() string              { return fmt.Sprintf("%g", float64(c)) }

// Symbol is a named variable.
type Symbol string

func (s Symbol) Diff(name string) Expr {
	if string(s) == name {
		return Const(1)
	}
	return Const(0)
}

func (s Symbol) Subst(name string, repl Expr) Expr {
	if string(s) == name {
		return repl
	}
	return s
}

func (s Symbol) Free(set map[string]struct{}) { set[string(s)] = struct{}{} }

func (s Symbol) Eval(env map[string]float64) (float64, error) {
	v, ok := env[string(s)]
	if !ok {
		return 0, fmt.Errorf("symexpr: unbound symbol %q", string(s))
	}
	return v, nil
}

func (s Symbol) String() string { return string(s) }

// Add is a flattened n-ary sum.
type Add struct{ Terms []Expr }

// NewAdd flattens nested sums, folds constants and drops zeros.
func NewAdd(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	acc := 0.0
	for _, t := range terms {
		switch v := t.(type) {
		case *Add:
			for _, inner := range v.Terms {
				if c, ok := inner.(Const); ok {
					acc += float64(c)
				} else {
					flat = append(flat, inner)
				}
			}
		case Const:
			acc += float64(v)
		default:
			flat = append(flat, t)
		}
	}
	if acc != 0 {
		flat = append(flat, Const(acc))
	}
	switch len(flat) {
	case 0:
		return Const(0)
	case 1:
		return flat[0]
	}
	return &Add{Terms: flat}
}

func (a *Add) Diff(name string) Expr {
	d := make([]Expr, len(a.Terms))
	for i, t := range a.Terms {
		d[i] = t.Diff(name)
	}
	return NewAdd(d...)
}

func (a *Add) Subst(name string, repl Expr) Expr {
	out := make([]Expr, len(a.Terms))
	for i, t := range a.Terms {
		out[i] = t.Subst(name, repl)
	}
	return NewAdd(out...)
}

func (a *Add) Free(set map[string]struct{}) {
	for _, t := range a.Terms {
		t.Free(set)
	}
}

func (a *Add) Eval(env map[string]float64) (float64, error) {
	sum := 0.0
	for _, t := range a.Terms {
		v, err := t.Eval(env)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum, nil
}

func (a *Add) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}

// Mul is a flattened n-ary product.
type Mul struct{ Factors []Expr }

// NewMul flattens nested products, folds constants, annihilates on zero
// and drops unit factors. Non-constant factors are kept in a stable sorted
// order so structurally equal products print identically.
func NewMul(factors ...Expr) Expr {
	flat := make([]Expr, 0, len(factors))
	coeff := 1.0
	for _, f := range factors {
		switch v := f.(type) {
		case *Mul:
			for _, inner := range v.Factors {
				if c, ok := inner.(Const); ok {
					coeff *= float64(c)
				} else {
					flat = append(flat, inner)
				}
			}
		case Const:
			coeff *= float64(v)
		default:
			flat = append(flat, f)
		}
	}
	if coeff == 0 {
		return Const(0)
	}
	sort.SliceStable(flat, func(i, j int) bool { return flat[i].String() < flat[j].String() })
	if coeff != 1 {
		flat = append([]Expr{Const(coeff)}, flat...)
	}
	switch len(flat) {
	case 0:
		return Const(1)
	case 1:
		return flat[0]
	}
	return &Mul{Factors: flat}
}

func (m *Mul) Diff(name string) Expr {
	// Product rule over all factors.
	terms := make([]Expr, 0, len(m.Factors))
	for i, fi := range m.Factors {
		df := fi.Diff(name)
		if c, ok := df.(Const); ok && c == 0 {
			continue
		}
		rest := make([]Expr, 0, len(m.Factors))
		rest = append(rest, df)
		for j, fj := range m.Factors {
			if j != i {
				rest = append(rest, fj)
			}
		}
		terms = append(terms, NewMul(rest...))
	}
	return NewAdd(terms...)
}

func (m *Mul) Subst(name string, repl Expr) Expr {
	out := make([]Expr, len(m.Factors))
	for i, f := range m.Factors {
		out[i] = f.Subst(name, repl)
	}
	return NewMul(out...)
}

func (m *Mul) Free(set map[string]struct{}) {
	for _, f := range m.Factors {
		f.Free(set)
	}
}

func (m *Mul) Eval(env map[string]float64) (float64, error) {
	prod := 1.0
	for _, f := range m.Factors {
		v, err := f.Eval(env)
		if err != nil {
			return 0, err
		}
		prod *= v
	}
	return prod, nil
}

func (m *Mul) String() string {
	parts := make([]string, len(m.Factors))
	for i, f := range m.Factors {
		if _, ok := f.(*Add); ok {
			parts[i] = "(" + f.String() + ")"
		} else {
			parts[i] = f.String()
		}
	}
	return strings.Join(parts, "*")
}

// Pow is base^exp.
type Pow struct{ Base, Exp Expr }

// NewPow folds constant powers and applies the unit identities.
func NewPow(base, exp Expr) Expr {
	if ec, ok := exp.(Const); ok {
		if ec == 0 {
			return Const(1)
		}
		if ec == 1 {
			return base
		}
		if bc, ok := base.(Const); ok {
			return Const(math.Pow(float64(bc), float64(ec)))
		}
	}
	if bc, ok := base.(Const); ok {
		if bc == 0 {
			return Const(0)
		}
		if bc == 1 {
			return Const(1)
		}
	}
	return &Pow{Base: base, Exp: exp}
}

func (p *Pow) Diff(name string) Expr {
	if ec, ok := p.Exp.(Const); ok {
		// Power rule: d(b^c) = c*b^(c-1)*b'.
		return NewMul(ec, NewPow(p.Base, Const(float64(ec)-1)), p.Base.Diff(name))
	}
	// General case: b^e * (e' log b + e*b'/b).
	return NewMul(NewPow(p.Base, p.Exp), NewAdd(
		NewMul(p.Exp.Diff(name), NewCall("log", p.Base)),
		NewMul(p.Exp, p.Base.Diff(name), NewPow(p.Base, Const(-1))),
	))
}

func (p *Pow) Subst(name string, repl Expr) Expr {
	return NewPow(p.Base.Subst(name, repl), p.Exp.Subst(name, repl))
}

func (p *Pow) Free(set map[string]struct{}) {
	p.Base.Free(set)
	p.Exp.Free(set)
}

func (p *Pow) Eval(env map[string]float64) (float64, error) {
	b, err := p.Base.Eval(env)
	if err != nil {
		return 0, err
	}
	e, err := p.Exp.Eval(env)
	if err != nil {
		return 0, err
	}
	return math.Pow(b, e), nil
}

func (p *Pow) String() string {
	bs := p.Base.String()
	if _, ok := p.Base.(Symbol); !ok {
		if _, isConst := p.Base.(Const); !isConst {
			bs = "(" + bs + ")"
		}
	}
	es := p.Exp.String()
	switch p.Exp.(type) {
	case Symbol, Const:
	default:
		es = "(" + es + ")"
	}
	return bs + "^" + es
}

// Call is a unary function application.
type Call struct {
	Fn  string
	Arg Expr
}

var callFns = map[string]func(float64) float64{
	"exp":  math.Exp,
	"log":  math.Log,
	"sqrt": math.Sqrt,
	"sin":  math.Sin,
	"cos":  math.Cos,
}

// KnownCall reports whether fn is a supported function name.
func KnownCall(fn string) bool { _, ok := callFns[fn]; return ok }

// NewCall folds constant arguments; fn must be a supported name.
func NewCall(fn string, arg Expr) Expr {
	f, ok := callFns[fn]
	if !ok {
		panic("symexpr: unknown function " + fn)
	}
	if c, ok := arg.(Const); ok {
		return Const(f(float64(c)))
	}
	return &Call{Fn: fn, Arg: arg}
}

func (c *Call) Diff(name string) Expr {
	da := c.Arg.Diff(name)
	var outer Expr
	switch c.Fn {
	case "exp":
		outer = NewCall("exp", c.Arg)
	case "log":
		outer = NewPow(c.Arg, Const(-1))
	case "sqrt":
		outer = NewMul(Const(0.5), NewPow(c.Arg, Const(-0.5)))
	case "sin":
		outer = NewCall("cos", c.Arg)
	case "cos":
		outer = NewMul(Const(-1), NewCall("sin", c.Arg))
	}
	return NewMul(outer, da)
}

func (c *Call) Subst(name string, repl Expr) Expr {
	return NewCall(c.Fn, c.Arg.Subst(name, repl))
}

func (c *Call) Free(set map[string]struct{}) { c.Arg.Free(set) }

func (c *Call) Eval(env map[string]float64) (float64, error) {
	v, err := c.Arg.Eval(env)
	if err != nil {
		return 0, err
	}
	return callFns[c.Fn](v), nil
}

func (c *Call) String() string { return c.Fn + "(" + c.Arg.String() + ")" }

// Sub builds a - b.
func Sub(a, b Expr) Expr { return NewAdd(a, NewMul(Const(-1), b)) }

// Div builds a / b.
func Div(a, b Expr) Expr { return NewMul(a, NewPow(b, Const(-1))) }

// FreeSymbols returns the set of free symbols in e.
func FreeSymbols(e Expr) map[string]struct{} {
	set := make(map[string]struct{})
	e.Free(set)
	return set
}

// IsZero reports whether e is the literal zero.
func IsZero(e Expr) bool {
	c, ok := e.(Const)
	return ok && c == 0
}

// RewriteSymbols replaces symbol names according to mapping, leaving
// unmapped symbols untouched. Rewriting happens on the tree, so one
// symbol's name being a substring of another's cannot cause misfires.
func RewriteSymbols(e Expr, mapping map[string]string) Expr {
	switch v := e.(type) {
	case Const:
		return v
	case Symbol:
		if to, ok := mapping[string(v)]; ok {
			return Symbol(to)
		}
		return v
	case *Add:
		out := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			out[i] = RewriteSymbols(t, mapping)
		}
		return NewAdd(out...)
	case *Mul:
		out := make([]Expr, len(v.Factors))
		for i, f := range v.Factors {
			out[i] = RewriteSymbols(f, mapping)
		}
		return NewMul(out...)
	case *Pow:
		return NewPow(RewriteSymbols(v.Base, mapping), RewriteSymbols(v.Exp, mapping))
	case *Call:
		return NewCall(v.Fn, RewriteSymbols(v.Arg, mapping))
	}
	return e
}
