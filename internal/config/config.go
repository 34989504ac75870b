// Package config holds the YAML run configuration tying a network file to
// a batch of conditions and solver options.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avele/reactode/internal/sim"
)

const (
	DefaultFinalTime = 10.0
	DefaultPoints    = 101
	DefaultRelTol    = 1e-6
	DefaultSolver    = "rosenbrock23"
)

// Config is one simulation run: which network, which conditions, which
// variables are active, how to solve, and where to sample the result.
type Config struct {
	// Network is the path of the network YAML, relative to the config file
	// unless absolute. Ignored when a preset supplies the network.
	Network string `yaml:"network"`

	Options    sim.Options     `yaml:"options"`
	Conditions []sim.Condition `yaml:"conditions,omitempty"`

	// Times are explicit query times; when empty, Points uniform samples
	// over [0, final] are used instead.
	Times  []float64 `yaml:"times,omitempty"`
	Points int       `yaml:"points"`

	// Species and Outputs select the reported columns by natural name;
	// empty selects everything.
	Species []string `yaml:"species,omitempty"`
	Outputs []string `yaml:"outputs,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Options: sim.Options{
			RelTol: DefaultRelTol,
			Solver: DefaultSolver,
		},
		Points: DefaultPoints,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// QueryTimes returns the sampling grid for one condition: the explicit
// Times when given, else Points uniform samples over [0, final].
func (c *Config) QueryTimes(final float64) []float64 {
	if len(c.Times) > 0 {
		return c.Times
	}
	n := c.Points
	if n < 2 {
		n = DefaultPoints
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = final * float64(i) / float64(n-1)
	}
	return out
}
