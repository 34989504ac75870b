package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avele/reactode/internal/kinerr"
)

func validBuilder() *Builder {
	return NewBuilder("demo").
		AddCompartment("cell", 3, 1).
		AddSpecies(Species{Name: "A", Compartment: "cell", Amount: 1}).
		AddSpecies(Species{Name: "B", Compartment: "cell", Amount: 0}).
		AddParameter("k", 2).
		AddReaction(Reaction{
			Name:      "conv",
			Reactants: []SpeciesRef{{Name: "A", Coefficient: 1}},
			Products:  []SpeciesRef{{Name: "B", Coefficient: 1}},
			Rate:      "k*A",
		})
}

func TestBuilderFinalize(t *testing.T) {
	m, err := validBuilder().Finalize()
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Name)
	assert.Len(t, m.Species, 2)
	assert.Len(t, m.Reactions, 1)
}

func TestBuilderDetachesModel(t *testing.T) {
	b := validBuilder()
	m, err := b.Finalize()
	require.NoError(t, err)

	// Further accumulation must not leak into the frozen model.
	b.AddSpecies(Species{Name: "C", Compartment: "cell"})
	assert.Len(t, m.Species, 2)
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name  string
		build func() *Builder
	}{
		{"bad dimension", func() *Builder {
			return validBuilder().AddCompartment("plane", 4, 1)
		}},
		{"non-positive size", func() *Builder {
			return validBuilder().AddCompartment("void", 3, 0)
		}},
		{"duplicate compartment", func() *Builder {
			return validBuilder().AddCompartment("cell", 3, 2)
		}},
		{"unknown species compartment", func() *Builder {
			return validBuilder().AddSpecies(Species{Name: "C", Compartment: "nowhere"})
		}},
		{"duplicate species", func() *Builder {
			return validBuilder().AddSpecies(Species{Name: "A", Compartment: "cell"})
		}},
		{"duplicate parameter", func() *Builder {
			return validBuilder().AddParameter("k", 3)
		}},
		{"empty rate", func() *Builder {
			return validBuilder().AddReaction(Reaction{Name: "r2"})
		}},
		{"unknown reactant", func() *Builder {
			return validBuilder().AddReaction(Reaction{
				Name:      "r2",
				Reactants: []SpeciesRef{{Name: "Z", Coefficient: 1}},
				Rate:      "1",
			})
		}},
		{"unknown output species", func() *Builder {
			return validBuilder().AddOutput(Output{Name: "y", Species: map[string]float64{"Z": 1}})
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.build().Finalize()
			require.Error(t, err)
			assert.True(t, errors.Is(err, kinerr.ErrValidation), "got %v", err)
		})
	}
}

func TestReactionLocalParameterAllowed(t *testing.T) {
	// A reaction-scoped parameter may reuse a global name; they are
	// distinct entities.
	m, err := validBuilder().
		AddReactionParameter("conv", "k", 9).
		Finalize()
	require.NoError(t, err)
	assert.Len(t, m.Parameters, 2)
}
