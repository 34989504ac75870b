package network

import (
	"github.com/avele/reactode/internal/kinerr"
)

// Builder accumulates pending entities. Accumulation never fails on
// cross-reference errors; all validation happens in Finalize.
type Builder struct {
	model Model
}

// NewBuilder starts an empty network under the given name.
func NewBuilder(name string) *Builder {
	return &Builder{model: Model{Name: name}}
}

// SetConcentrationUnits switches the model-wide unit convention.
func (b *Builder) SetConcentrationUnits(on bool) *Builder {
	b.model.Concentration = on
	return b
}

func (b *Builder) AddCompartment(name string, dimension int, size float64) *Builder {
	b.model.Compartments = append(b.model.Compartments, Compartment{Name: name, Dimension: dimension, Size: size})
	return b
}

func (b *Builder) AddSpecies(s Species) *Builder {
	b.model.Species = append(b.model.Species, s)
	return b
}

func (b *Builder) AddParameter(name string, value float64) *Builder {
	b.model.Parameters = append(b.model.Parameters, Parameter{Name: name, Value: value})
	return b
}

// AddReactionParameter scopes a rate parameter to one reaction.
func (b *Builder) AddReactionParameter(reaction, name string, value float64) *Builder {
	b.model.Parameters = append(b.model.Parameters, Parameter{Name: name, Value: value, Reaction: reaction})
	return b
}

func (b *Builder) AddReaction(r Reaction) *Builder {
	b.model.Reactions = append(b.model.Reactions, r)
	return b
}

func (b *Builder) AddRule(kind RuleKind, text string) *Builder {
	b.model.Rules = append(b.model.Rules, Rule{Kind: kind, Text: text})
	return b
}

func (b *Builder) AddOutput(o Output) *Builder {
	b.model.Outputs = append(b.model.Outputs, o)
	return b
}

// Finalize validates cross-references and returns the frozen model. The
// builder keeps no hold on the returned model.
func (b *Builder) Finalize() (*Model, error) {
	m := b.model
	m.Compartments = append([]Compartment(nil), m.Compartments...)
	m.Species = append([]Species(nil), m.Species...)
	m.Parameters = append([]Parameter(nil), m.Parameters...)
	m.Reactions = append([]Reaction(nil), m.Reactions...)
	m.Rules = append([]Rule(nil), m.Rules...)
	m.Outputs = append([]Output(nil), m.Outputs...)

	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func validate(m *Model) error {
	comps := make(map[string]struct{}, len(m.Compartments))
	for _, c := range m.Compartments {
		if c.Name == "" {
			return kinerr.Validationf("compartment with empty name")
		}
		if c.Dimension < 0 || c.Dimension > 3 {
			return kinerr.Validationf("compartment %q: dimension %d out of range [0,3]", c.Name, c.Dimension)
		}
		if c.Size <= 0 {
			return kinerr.Validationf("compartment %q: size must be positive", c.Name)
		}
		if _, dup := comps[c.Name]; dup {
			return kinerr.Validationf("duplicate compartment %q", c.Name)
		}
		comps[c.Name] = struct{}{}
	}

	specs := make(map[string]struct{}, len(m.Species))
	for _, s := range m.Species {
		if s.Name == "" {
			return kinerr.Validationf("species with empty name")
		}
		if _, ok := comps[s.Compartment]; !ok {
			return kinerr.Validationf("species %q: unknown compartment %q", s.Name, s.Compartment)
		}
		if _, dup := specs[s.Name]; dup {
			return kinerr.Validationf("duplicate species %q", s.Name)
		}
		specs[s.Name] = struct{}{}
	}

	params := make(map[string]struct{}, len(m.Parameters))
	for _, p := range m.Parameters {
		if p.Name == "" {
			return kinerr.Validationf("parameter with empty name")
		}
		key := p.Reaction + "/" + p.Name
		if _, dup := params[key]; dup {
			return kinerr.Validationf("duplicate parameter %q", p.Name)
		}
		params[key] = struct{}{}
	}

	for _, r := range m.Reactions {
		if r.Name == "" {
			return kinerr.Validationf("reaction with empty name")
		}
		if r.Rate == "" {
			return kinerr.Validationf("reaction %q: empty rate law", r.Name)
		}
		for _, ref := range append(append([]SpeciesRef(nil), r.Reactants...), r.Products...) {
			if _, ok := specs[ref.Name]; !ok {
				return kinerr.Validationf("reaction %q: unknown species %q", r.Name, ref.Name)
			}
		}
	}

	for _, o := range m.Outputs {
		if o.Name == "" {
			return kinerr.Validationf("output with empty name")
		}
		for name := range o.Species {
			if _, ok := specs[name]; !ok {
				return kinerr.Validationf("output %q: unknown species %q", o.Name, name)
			}
		}
	}

	return nil
}
