package config

import (
	"sort"

	"github.com/avele/reactode/internal/network"
)

// presets are built-in demonstration networks, keyed by name. Each entry
// rebuilds the network fresh so callers can mutate their copy.
var presets = map[string]func() (*network.Model, error){
	"binding": func() (*network.Model, error) {
		return network.NewBuilder("binding").
			AddCompartment("cell", 3, 1).
			AddSpecies(network.Species{Name: "A", Compartment: "cell", Amount: 2}).
			AddSpecies(network.Species{Name: "B", Compartment: "cell", Amount: 1}).
			AddSpecies(network.Species{Name: "AB", Compartment: "cell", Amount: 0}).
			AddParameter("kon", 2).
			AddParameter("koff", 1).
			AddReaction(network.Reaction{
				Name:      "bind",
				Reactants: []network.SpeciesRef{{Name: "A", Coefficient: 1}, {Name: "B", Coefficient: 1}},
				Products:  []network.SpeciesRef{{Name: "AB", Coefficient: 1}},
				Rate:      "kon*A*B",
			}).
			AddReaction(network.Reaction{
				Name:      "unbind",
				Reactants: []network.SpeciesRef{{Name: "AB", Coefficient: 1}},
				Products:  []network.SpeciesRef{{Name: "A", Coefficient: 1}, {Name: "B", Coefficient: 1}},
				Rate:      "koff*AB",
			}).
			AddOutput(network.Output{Name: "bound_fraction", Species: map[string]float64{"AB": 1}}).
			Finalize()
	},
	"enzyme": func() (*network.Model, error) {
		// Michaelis-Menten with kcat derived from a rule.
		return network.NewBuilder("enzyme").
			AddCompartment("cell", 3, 1).
			AddSpecies(network.Species{Name: "E", Compartment: "cell", Amount: 0.1}).
			AddSpecies(network.Species{Name: "S", Compartment: "cell", Amount: 5}).
			AddSpecies(network.Species{Name: "ES", Compartment: "cell", Amount: 0}).
			AddSpecies(network.Species{Name: "P", Compartment: "cell", Amount: 0}).
			AddParameter("k1", 10).
			AddParameter("k2", 1).
			AddParameter("kcat", 0).
			AddParameter("vmax", 3).
			AddRule(network.RuleRepeated, "kcat = vmax/0.1").
			AddReaction(network.Reaction{
				Name:      "assoc",
				Reactants: []network.SpeciesRef{{Name: "E", Coefficient: 1}, {Name: "S", Coefficient: 1}},
				Products:  []network.SpeciesRef{{Name: "ES", Coefficient: 1}},
				Rate:      "k1*E*S",
			}).
			AddReaction(network.Reaction{
				Name:      "dissoc",
				Reactants: []network.SpeciesRef{{Name: "ES", Coefficient: 1}},
				Products:  []network.SpeciesRef{{Name: "E", Coefficient: 1}, {Name: "S", Coefficient: 1}},
				Rate:      "k2*ES",
			}).
			AddReaction(network.Reaction{
				Name:      "cat",
				Reactants: []network.SpeciesRef{{Name: "ES", Coefficient: 1}},
				Products:  []network.SpeciesRef{{Name: "E", Coefficient: 1}, {Name: "P", Coefficient: 1}},
				Rate:      "kcat*ES",
			}).
			AddOutput(network.Output{Name: "product", Species: map[string]float64{"P": 1}}).
			Finalize()
	},
	"induction": func() (*network.Model, error) {
		// Ligand-induced expression: the boundary ligand is an input whose
		// level can be stepped mid-run.
		return network.NewBuilder("induction").
			AddCompartment("cell", 3, 1).
			AddSpecies(network.Species{Name: "ligand", Compartment: "cell", Amount: 0, Boundary: true}).
			AddSpecies(network.Species{Name: "mrna", Compartment: "cell", Amount: 0}).
			AddSpecies(network.Species{Name: "protein", Compartment: "cell", Amount: 0}).
			AddParameter("ktx", 2).
			AddParameter("ktl", 5).
			AddParameter("dm", 1).
			AddParameter("dp", 0.2).
			AddReaction(network.Reaction{
				Name:     "transcribe",
				Products: []network.SpeciesRef{{Name: "mrna", Coefficient: 1}},
				Rate:     "ktx*ligand",
			}).
			AddReaction(network.Reaction{
				Name:      "decay_m",
				Reactants: []network.SpeciesRef{{Name: "mrna", Coefficient: 1}},
				Rate:      "dm*mrna",
			}).
			AddReaction(network.Reaction{
				Name:     "translate",
				Products: []network.SpeciesRef{{Name: "protein", Coefficient: 1}},
				Rate:     "ktl*mrna",
			}).
			AddReaction(network.Reaction{
				Name:      "decay_p",
				Reactants: []network.SpeciesRef{{Name: "protein", Coefficient: 1}},
				Rate:      "dp*protein",
			}).
			AddOutput(network.Output{Name: "expression", Species: map[string]float64{"protein": 1}}).
			Finalize()
	},
}

// GetPreset rebuilds a named demonstration network, or nil if unknown.
func GetPreset(name string) *network.Model {
	build, ok := presets[name]
	if !ok {
		return nil
	}
	m, err := build()
	if err != nil {
		// Presets are fixed at compile time; a build error is a bug.
		panic(err)
	}
	return m
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
