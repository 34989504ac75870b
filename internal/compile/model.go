// Package compile turns a frozen reaction network into the canonical
// symbolic model: collision-free renamed symbols, a state/input partition,
// rule-substituted rate laws and sparse stoichiometry.
package compile

import (
	"github.com/avele/reactode/internal/symexpr"
)

// StoichEntry is one sparse stoichiometry triplet. Duplicate (species,
// reaction) pairs are accumulated before entries are emitted, so each pair
// appears at most once with its summed coefficient.
type StoichEntry struct {
	Species  int
	Reaction int
	Coeff    float64
}

// Model is the canonical symbolic model derived once per network. It is
// immutable after Compile returns and safe to share across goroutines.
type Model struct {
	Name string

	// Counts: compartments, rate parameters, seeds, input controls,
	// inputs, states, reactions, outputs.
	NV, NK, NS, NQ, NU, NX, NR, NY int

	// Compartments.
	VSyms  []string
	VNames []string
	V      []float64

	// Rate parameters surviving rule substitution.
	KSyms  []string
	KNames []string
	K      []float64

	// Seeds: one per state; the seed value is the state's initial amount.
	SSyms  []string
	SNames []string
	Seeds  []float64

	// Inputs (boundary/constant species). Input control parameters are the
	// piecewise-constant input levels, so NQ == NU and controls share the
	// input symbols.
	USyms  []string
	UNames []string
	U      []float64

	// States.
	XSyms  []string
	XNames []string

	// Species -> compartment index maps.
	XComp []int
	UComp []int

	// Sparse stoichiometry over states (S, nx x nr) and inputs (Su, nu x nr).
	Stoich  []StoichEntry
	StoichU []StoichEntry

	// One rate-law expression per reaction, written over XSyms, USyms,
	// KSyms and "t".
	Rates []symexpr.Expr

	// Affine outputs y = C1*x + C2*u + C.
	YNames []string
	C1     [][]float64
	C2     [][]float64
	C      []float64
}

// StateIndex returns the state position of a natural species name, or -1.
func (m *Model) StateIndex(name string) int {
	for i, n := range m.XNames {
		if n == name {
			return i
		}
	}
	return -1
}

// InputIndex returns the input position of a natural species name, or -1.
func (m *Model) InputIndex(name string) int {
	for i, n := range m.UNames {
		if n == name {
			return i
		}
	}
	return -1
}

// ParamIndex returns the position of a natural parameter name, or -1.
func (m *Model) ParamIndex(name string) int {
	for i, n := range m.KNames {
		if n == name {
			return i
		}
	}
	return -1
}

// OutputIndex returns the position of an output name, or -1.
func (m *Model) OutputIndex(name string) int {
	for i, n := range m.YNames {
		if n == name {
			return i
		}
	}
	return -1
}
