package flow

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseMachineSet attempts to parse JSON or YAML into a MachineSet.
func ParseMachineSet(data []byte) (MachineSet, error) {
	var cfg MachineSet
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		// yaml can handle JSON too, so a single attempt is fine
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// BuildMachines compiles every machine in cfg against the same resolvers.
func BuildMachines[T any](cfg MachineSet, resolvers ResolverRegistry[T], opts ...MachineOption[T]) (map[string]*Machine[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	machines := make(map[string]*Machine[T], len(cfg.Machines))
	for _, def := range cfg.Machines {
		m, err := NewMachine(def, resolvers, opts...)
		if err != nil {
			return nil, fmt.Errorf("build machine %s: %w", def.Entity, err)
		}
		machines[m.ID()] = m
	}
	return machines, nil
}

// MarshalMachineSet renders MachineSet as JSON (useful for fixtures).
func MarshalMachineSet(cfg MachineSet) ([]byte, error) {
	return json.Marshal(cfg)
}
