package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is a service declaration together with its initial values,
// as read from a definition file:
//
//	name: com.victronenergy.temperature.virtual_1
//	properties:
//	  Temperature: {type: d, min: -50, max: 150}
//	  CustomName: s
//	  TemperatureType: {type: i, readonly: true}
//	values:
//	  Temperature: 21.5
//	  CustomName: Garage
//	s2:
//	  path: /S2/0/Rm
type Definition struct {
	Service ServiceDeclaration
	Values  map[string]any
}

type rawDefinition struct {
	Name       string         `yaml:"name"`
	Properties yaml.Node      `yaml:"properties"`
	Values     map[string]any `yaml:"values"`
	S2         *S2Declaration `yaml:"s2"`
}

// ParseDefinition parses a definition from YAML bytes. Property order in
// the file is kept. Initial values are validated against their
// declarations.
func ParseDefinition(data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("definition missing name")
	}

	def := &Definition{
		Service: ServiceDeclaration{Name: raw.Name, S2: raw.S2},
		Values:  make(map[string]any, len(raw.Values)),
	}

	props, err := parseProperties(&raw.Properties)
	if err != nil {
		return nil, err
	}
	def.Service.Properties = props

	for key, v := range raw.Values {
		name := Unslash(key)
		d, ok := def.Service.Property(name)
		if !ok {
			return nil, fmt.Errorf("value for %s: %w", name, ErrUnknownProperty)
		}
		canonical, err := Validate(name, d, v)
		if err != nil {
			return nil, fmt.Errorf("initial value: %w", err)
		}
		def.Values[name] = canonical
	}
	return def, nil
}

func parseProperties(node *yaml.Node) ([]Property, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: properties must be a mapping", ErrInvalidDeclaration, node.Line)
	}

	props := make([]Property, 0, len(node.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := Unslash(node.Content[i].Value)
		if seen[name] {
			return nil, fmt.Errorf("%w: line %d: duplicate property %s", ErrInvalidDeclaration, node.Content[i].Line, name)
		}
		seen[name] = true

		var d Declaration
		if err := node.Content[i+1].Decode(&d); err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		props = append(props, Property{Name: name, Declaration: d})
	}
	return props, nil
}

// LoadDefinition loads and parses a definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseDefinition(data)
}
