package mcard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// cardYAML is the serialized form of a model card.
type cardYAML struct {
	ModelName  string      `yaml:"model_name"`
	ModelType  string      `yaml:"model_type"`
	Version    string      `yaml:"version,omitempty"`
	VAFile     string      `yaml:"va_file,omitempty"`
	VAModule   string      `yaml:"va_module,omitempty"`
	Parameters []Parameter `yaml:"parameters"`
}

// Save writes the card as YAML.
func (mc *MCard) Save(path string) error {
	card := cardYAML{
		ModelName:  mc.ModelName,
		ModelType:  mc.ModelType,
		Version:    mc.Version,
		Parameters: mc.params,
	}
	if mc.VA != nil {
		card.VAFile = mc.VA.Path
		card.VAModule = mc.VA.Module
	}
	data, err := yaml.Marshal(card)
	if err != nil {
		return fmt.Errorf("mcard: marshal %s: %w", mc.ModelName, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a model card from YAML, validating every parameter on the way
// in. A referenced VA file is loaded from disk relative to the working
// directory; a missing VA file is an error since its content is part of the
// DUT hash.
func Load(path string) (*MCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var card cardYAML
	if err := yaml.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("mcard: parse %s: %w", path, err)
	}
	if card.ModelName == "" {
		return nil, fmt.Errorf("mcard: %s has no model_name", path)
	}
	mc := New(card.ModelName, card.ModelType)
	mc.Version = card.Version
	for _, p := range card.Parameters {
		if err := mc.Add(p); err != nil {
			return nil, fmt.Errorf("mcard: %s: %w", path, err)
		}
	}
	if card.VAFile != "" {
		va, err := LoadVA(card.VAFile, card.VAModule)
		if err != nil {
			return nil, fmt.Errorf("mcard: %s: %w", path, err)
		}
		mc.VA = va
	}
	return mc, nil
}
