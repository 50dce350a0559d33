package simulation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a named simulation config stored as YAML:
//
//	name: two-leg parlay
//	simulation:
//	  mode: A
//	  starting_bankroll: 1000
//	  ...
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Simulation  Config `yaml:"simulation"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario and validates its config.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Simulation.WithDefaults().Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return &s, nil
}
