package compile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avele/reactode/internal/kinerr"
	"github.com/avele/reactode/internal/network"
	"github.com/avele/reactode/internal/symexpr"
)

func bindingNetwork(t *testing.T) *network.Model {
	t.Helper()
	b := network.NewBuilder("binding")
	b.AddCompartment("cell", 3, 1.0)
	b.AddSpecies(network.Species{Name: "A", Compartment: "cell", Amount: 2})
	b.AddSpecies(network.Species{Name: "B", Compartment: "cell", Amount: 1})
	b.AddSpecies(network.Species{Name: "C", Compartment: "cell", Amount: 0})
	b.AddParameter("kon", 10)
	b.AddParameter("koff", 1)
	b.AddReaction(network.Reaction{
		Name:      "bind",
		Reactants: []network.SpeciesRef{{Name: "A", Coefficient: 1}, {Name: "B", Coefficient: 1}},
		Products:  []network.SpeciesRef{{Name: "C", Coefficient: 1}},
		Rate:      "kon*A*B - koff*C",
	})
	m, err := b.Finalize()
	require.NoError(t, err)
	return m
}

func TestCompileBinding(t *testing.T) {
	m, err := Compile(bindingNetwork(t))
	require.NoError(t, err)

	assert.Equal(t, 1, m.NV)
	assert.Equal(t, 3, m.NX)
	assert.Equal(t, 0, m.NU)
	assert.Equal(t, 2, m.NK)
	assert.Equal(t, 3, m.NS)
	assert.Equal(t, 1, m.NR)
	assert.Equal(t, []string{"A", "B", "C"}, m.XNames)
	assert.Equal(t, []float64{2, 1, 0}, m.Seeds)

	// Stoichiometry: A -1, B -1, C +1 for the single reaction.
	require.Len(t, m.Stoich, 3)
	coeffs := map[int]float64{}
	for _, e := range m.Stoich {
		assert.Equal(t, 0, e.Reaction)
		coeffs[e.Species] = e.Coeff
	}
	assert.Equal(t, map[int]float64{0: -1, 1: -1, 2: 1}, coeffs)

	// Rate law evaluates with canonical symbols.
	env := map[string]float64{
		m.XSyms[0]: 3, m.XSyms[1]: 4, m.XSyms[2]: 5,
		m.KSyms[0]: 10, m.KSyms[1]: 1,
	}
	v, err := m.Rates[0].Eval(env)
	require.NoError(t, err)
	assert.InDelta(t, 10*3*4-5.0, v, 1e-12)
}

func TestRenamingCollisionFree(t *testing.T) {
	// Natural names deliberately squat on the systematic candidates.
	b := network.NewBuilder("adversarial")
	b.AddCompartment("v1", 3, 1.0)
	b.AddSpecies(network.Species{Name: "x1", Compartment: "v1", Amount: 1})
	b.AddSpecies(network.Species{Name: "x2", Compartment: "v1", Amount: 1})
	b.AddSpecies(network.Species{Name: "k1", Compartment: "v1", Amount: 0, Boundary: true})
	b.AddParameter("u1", 2)
	b.AddParameter("s1", 3)
	b.AddReaction(network.Reaction{
		Name:      "r",
		Reactants: []network.SpeciesRef{{Name: "x1", Coefficient: 1}},
		Products:  []network.SpeciesRef{{Name: "x2", Coefficient: 1}},
		Rate:      "u1*x1 + s1*k1",
	})
	net, err := b.Finalize()
	require.NoError(t, err)

	m, err := Compile(net)
	require.NoError(t, err)

	natural := map[string]struct{}{"v1": {}, "x1": {}, "x2": {}, "k1": {}, "u1": {}, "s1": {}}
	seen := map[string]struct{}{}
	all := [][]string{m.VSyms, m.XSyms, m.USyms, m.KSyms, m.SSyms}
	for _, group := range all {
		for _, sym := range group {
			_, clash := natural[sym]
			assert.False(t, clash, "systematic name %q collides with a natural name", sym)
			_, dup := seen[sym]
			assert.False(t, dup, "systematic name %q assigned twice", sym)
			seen[sym] = struct{}{}
		}
	}
}

func TestPartitionPreservesOrder(t *testing.T) {
	b := network.NewBuilder("partition")
	b.AddCompartment("c", 3, 1.0)
	for _, s := range []network.Species{
		{Name: "s1", Compartment: "c", Amount: 1},
		{Name: "s2", Compartment: "c", Amount: 1, Boundary: true},
		{Name: "s3", Compartment: "c", Amount: 1},
		{Name: "s4", Compartment: "c", Amount: 1, Constant: true},
		{Name: "s5", Compartment: "c", Amount: 1},
	} {
		b.AddSpecies(s)
	}
	net, err := b.Finalize()
	require.NoError(t, err)
	m, err := Compile(net)
	require.NoError(t, err)

	assert.Equal(t, []string{"s1", "s3", "s5"}, m.XNames)
	assert.Equal(t, []string{"s2", "s4"}, m.UNames)
}

func TestStoichiometryAccumulates(t *testing.T) {
	// E appears as both reactant and product: entries sum, never overwrite.
	b := network.NewBuilder("catalysis")
	b.AddCompartment("c", 3, 1.0)
	b.AddSpecies(network.Species{Name: "E", Compartment: "c", Amount: 1})
	b.AddSpecies(network.Species{Name: "S", Compartment: "c", Amount: 5})
	b.AddSpecies(network.Species{Name: "P", Compartment: "c", Amount: 0})
	b.AddParameter("kcat", 1)
	b.AddReaction(network.Reaction{
		Name:      "conv",
		Reactants: []network.SpeciesRef{{Name: "E", Coefficient: 2}, {Name: "S", Coefficient: 1}},
		Products:  []network.SpeciesRef{{Name: "E", Coefficient: 3}, {Name: "P", Coefficient: 1}},
		Rate:      "kcat*E*S",
	})
	net, err := b.Finalize()
	require.NoError(t, err)
	m, err := Compile(net)
	require.NoError(t, err)

	var eCoeff float64
	var eEntries int
	ei := m.StateIndex("E")
	for _, e := range m.Stoich {
		if e.Species == ei {
			eEntries++
			eCoeff = e.Coeff
		}
	}
	assert.Equal(t, 1, eEntries)
	assert.InDelta(t, 1.0, eCoeff, 1e-12) // -2 + 3
}

func TestConcentrationUnitsDivideBySize(t *testing.T) {
	b := network.NewBuilder("conc")
	b.SetConcentrationUnits(true)
	b.AddCompartment("c", 3, 4.0)
	b.AddSpecies(network.Species{Name: "A", Compartment: "c", Amount: 1})
	b.AddParameter("k", 1)
	b.AddReaction(network.Reaction{
		Name:      "decay",
		Reactants: []network.SpeciesRef{{Name: "A", Coefficient: 1}},
		Rate:      "k*A",
	})
	net, err := b.Finalize()
	require.NoError(t, err)
	m, err := Compile(net)
	require.NoError(t, err)

	require.Len(t, m.Stoich, 1)
	assert.InDelta(t, -0.25, m.Stoich[0].Coeff, 1e-12)
}

func TestDottedSpeciesReference(t *testing.T) {
	b := network.NewBuilder("dotted")
	b.AddCompartment("cyto", 3, 1.0)
	b.AddSpecies(network.Species{Name: "ATP", Compartment: "cyto", Amount: 1})
	b.AddParameter("k", 2)
	b.AddReaction(network.Reaction{
		Name:      "use",
		Reactants: []network.SpeciesRef{{Name: "ATP", Coefficient: 1}},
		Rate:      "k*cyto.ATP",
	})
	net, err := b.Finalize()
	require.NoError(t, err)
	m, err := Compile(net)
	require.NoError(t, err)

	env := map[string]float64{m.XSyms[0]: 3, m.KSyms[0]: 2}
	v, err := m.Rates[0].Eval(env)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, v, 1e-12)
}

func TestChainedRulesEliminated(t *testing.T) {
	b := network.NewBuilder("rules")
	b.AddCompartment("c", 3, 1.0)
	b.AddSpecies(network.Species{Name: "A", Compartment: "c", Amount: 1})
	b.AddParameter("k", 1)
	b.AddParameter("p", 0)
	b.AddParameter("q", 0)
	b.AddParameter("base", 5)
	b.AddReaction(network.Reaction{
		Name:      "r",
		Reactants: []network.SpeciesRef{{Name: "A", Coefficient: 1}},
		Rate:      "p*A",
	})
	// p depends on q, q depends on base: two-deep chain.
	b.AddRule(network.RuleRepeated, "p = 2*q")
	b.AddRule(network.RuleRepeated, "q = base + k")
	net, err := b.Finalize()
	require.NoError(t, err)
	m, err := Compile(net)
	require.NoError(t, err)

	// Ruled symbols p and q must be gone from both the rate law and the
	// parameter vector.
	assert.Equal(t, []string{"k", "base"}, m.KNames)
	free := symexpr.FreeSymbols(m.Rates[0])
	for sym := range free {
		assert.NotEqual(t, "p", sym)
		assert.NotEqual(t, "q", sym)
	}

	env := map[string]float64{m.XSyms[0]: 3}
	for i, sym := range m.KSyms {
		env[sym] = m.K[i]
	}
	v, err := m.Rates[0].Eval(env)
	require.NoError(t, err)
	assert.InDelta(t, 2*(5+1)*3.0, v, 1e-12)
}

func TestCyclicRulesFail(t *testing.T) {
	b := network.NewBuilder("cycle")
	b.AddCompartment("c", 3, 1.0)
	b.AddSpecies(network.Species{Name: "A", Compartment: "c", Amount: 1})
	b.AddParameter("p", 0)
	b.AddParameter("q", 0)
	b.AddReaction(network.Reaction{
		Name:      "r",
		Reactants: []network.SpeciesRef{{Name: "A", Coefficient: 1}},
		Rate:      "p*A",
	})
	b.AddRule(network.RuleRepeated, "p = q + 1")
	b.AddRule(network.RuleRepeated, "q = p + 1")
	net, err := b.Finalize()
	require.NoError(t, err)

	_, err = Compile(net)
	assert.True(t, errors.Is(err, kinerr.ErrCyclicRule), "got %v", err)
}

func TestRuleErrors(t *testing.T) {
	base := func() *network.Builder {
		b := network.NewBuilder("bad")
		b.AddCompartment("c", 3, 1.0)
		b.AddSpecies(network.Species{Name: "A", Compartment: "c", Amount: 1})
		b.AddParameter("p", 0)
		b.AddReaction(network.Reaction{
			Name:      "r",
			Reactants: []network.SpeciesRef{{Name: "A", Coefficient: 1}},
			Rate:      "p*A",
		})
		return b
	}

	b := base()
	b.AddRule(network.RuleKind("rate"), "p = 1")
	net, err := b.Finalize()
	require.NoError(t, err)
	_, err = Compile(net)
	assert.True(t, errors.Is(err, kinerr.ErrUnsupportedFeature), "got %v", err)

	b = base()
	b.AddRule(network.RuleRepeated, "p == 1")
	net, err = b.Finalize()
	require.NoError(t, err)
	_, err = Compile(net)
	assert.True(t, errors.Is(err, kinerr.ErrValidation), "got %v", err)

	b = base()
	b.AddRule(network.RuleRepeated, "nosuch = 1")
	net, err = b.Finalize()
	require.NoError(t, err)
	_, err = Compile(net)
	assert.True(t, errors.Is(err, kinerr.ErrValidation), "got %v", err)
}

func TestUnresolvedRateSymbol(t *testing.T) {
	b := network.NewBuilder("unresolved")
	b.AddCompartment("c", 3, 1.0)
	b.AddSpecies(network.Species{Name: "A", Compartment: "c", Amount: 1})
	b.AddReaction(network.Reaction{
		Name:      "r",
		Reactants: []network.SpeciesRef{{Name: "A", Coefficient: 1}},
		Rate:      "missing*A",
	})
	net, err := b.Finalize()
	require.NoError(t, err)

	_, err = Compile(net)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kinerr.ErrValidation))
	assert.Contains(t, err.Error(), "r")
	assert.Contains(t, err.Error(), "missing")
}

func TestReactionLocalParameters(t *testing.T) {
	b := network.NewBuilder("local")
	b.AddCompartment("c", 3, 1.0)
	b.AddSpecies(network.Species{Name: "A", Compartment: "c", Amount: 1})
	b.AddSpecies(network.Species{Name: "B", Compartment: "c", Amount: 1})
	b.AddParameter("k", 3)
	b.AddReaction(network.Reaction{
		Name:      "r1",
		Reactants: []network.SpeciesRef{{Name: "A", Coefficient: 1}},
		Rate:      "k*A",
	})
	b.AddReaction(network.Reaction{
		Name:      "r2",
		Reactants: []network.SpeciesRef{{Name: "B", Coefficient: 1}},
		Rate:      "k*B",
	})
	// r2 carries its own k that shadows the model-scoped one.
	b.AddReactionParameter("r2", "k", 7)
	net, err := b.Finalize()
	require.NoError(t, err)
	m, err := Compile(net)
	require.NoError(t, err)

	require.Equal(t, 2, m.NK)
	env := map[string]float64{m.XSyms[0]: 1, m.XSyms[1]: 1}
	for i, sym := range m.KSyms {
		env[sym] = m.K[i]
	}
	v1, err := m.Rates[0].Eval(env)
	require.NoError(t, err)
	v2, err := m.Rates[1].Eval(env)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, v1, 1e-12)
	assert.InDelta(t, 7.0, v2, 1e-12)
}
