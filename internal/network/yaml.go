package network

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avele/reactode/internal/kinerr"
)

// Load reads a YAML network description and finalizes it through the
// builder validation path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Unmarshal parses YAML network bytes and validates them.
func Unmarshal(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, kinerr.Validationf("bad network yaml: %v", err)
	}
	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the model back out as YAML.
func Save(path string, m *Model) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
