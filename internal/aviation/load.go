package aviation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is the initial traffic loaded at startup.
type Scenario struct {
	Aircraft []Aircraft `yaml:"aircraft"`
}

func ParseAirport(data []byte) (*Airport, error) {
	var ap Airport
	if err := yaml.Unmarshal(data, &ap); err != nil {
		return nil, err
	}
	if err := ap.normalize(); err != nil {
		return nil, err
	}
	return &ap, nil
}

func LoadAirport(path string) (*Airport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ap, err := ParseAirport(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ap, nil
}

func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	for i := range s.Aircraft {
		ac := &s.Aircraft[i]
		ac.fillDefaults()
		if err := ac.Check(); err != nil {
			return nil, fmt.Errorf("aircraft %d: %w", i, err)
		}
	}
	return &s, nil
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// NewAircraft returns an aircraft with default performance limits, ready to
// be added to a simulation.
func NewAircraft(callsign string, phase Phase) Aircraft {
	ac := Aircraft{Callsign: callsign, Phase: phase, Controllable: true}
	ac.fillDefaults()
	return ac
}
