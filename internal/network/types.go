// Package network holds the immutable reaction-network description and the
// two-phase builder that assembles it: accumulate entities freely, then
// Finalize to validate cross-references and freeze the model.
package network

// Compartment is a reaction volume.
type Compartment struct {
	Name      string  `yaml:"name"`
	Dimension int     `yaml:"dimension"`
	Size      float64 `yaml:"size"`
}

// Species lives in exactly one compartment. Boundary or constant species
// are treated as inputs rather than states.
type Species struct {
	Name        string  `yaml:"name"`
	Compartment string  `yaml:"compartment"`
	Amount      float64 `yaml:"amount"`
	Boundary    bool    `yaml:"boundary"`
	Constant    bool    `yaml:"constant"`
}

// IsInput reports whether the species belongs in the input partition.
func (s Species) IsInput() bool { return s.Boundary || s.Constant }

// Parameter is a rate constant. A non-empty Reaction scopes it to that
// reaction; reaction-local names shadow nothing, they are distinct entities.
type Parameter struct {
	Name     string  `yaml:"name"`
	Value    float64 `yaml:"value"`
	Reaction string  `yaml:"reaction,omitempty"`
}

// SpeciesRef pairs a species name with a stoichiometric coefficient.
type SpeciesRef struct {
	Name        string  `yaml:"name"`
	Coefficient float64 `yaml:"coefficient"`
}

// Reaction maps reactants to products under a rate-law expression. The
// rate law may reference species by bare name or compartment-qualified
// (compartment.species) form.
type Reaction struct {
	Name      string       `yaml:"name"`
	Reactants []SpeciesRef `yaml:"reactants,omitempty"`
	Products  []SpeciesRef `yaml:"products,omitempty"`
	Rate      string       `yaml:"rate"`
}

// RuleKind discriminates assignment-rule semantics.
type RuleKind string

const (
	// RuleRepeated is a continuously substituted assignment.
	RuleRepeated RuleKind = "repeated"
	// RuleInitial is applied once at compile time.
	RuleInitial RuleKind = "initial"
)

// Rule is a textual assignment "target = value".
type Rule struct {
	Kind RuleKind `yaml:"kind"`
	Text string   `yaml:"rule"`
}

// Output is an affine observable over species: y = sum(coeff*species) + Constant.
type Output struct {
	Name     string             `yaml:"name"`
	Species  map[string]float64 `yaml:"species"`
	Constant float64            `yaml:"constant"`
}

// Model is the frozen reaction network. Construct via Builder.Finalize or
// Load; do not mutate after construction.
type Model struct {
	Name string `yaml:"name"`

	// Concentration selects concentration units model-wide: stoichiometric
	// coefficients are divided by the owning compartment's size. False
	// means raw substance/amount units.
	Concentration bool `yaml:"concentration"`

	Compartments []Compartment `yaml:"compartments"`
	Species      []Species     `yaml:"species"`
	Parameters   []Parameter   `yaml:"parameters"`
	Reactions    []Reaction    `yaml:"reactions"`
	Rules        []Rule        `yaml:"rules,omitempty"`
	Outputs      []Output      `yaml:"outputs,omitempty"`
}
