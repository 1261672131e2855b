package model

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// Model errors.
var (
	ErrInvalidDeclaration = errors.New("invalid declaration")
	ErrInvalidValue       = errors.New("invalid value")
	ErrUnknownProperty    = errors.New("property not found in properties")
	ErrReadOnly           = errors.New("property is read-only")
)

// DefaultS2Path is the object path of the S2 resource manager.
const DefaultS2Path = "/S2/0/Rm"

// Declaration describes one property.
type Declaration struct {
	// Type is the variant type tag. Empty means undeclared: values are
	// validated as strings and encoded without a tag.
	Type variant.Type

	// Min is the optional lower bound for numeric types.
	Min any

	// Max is the optional upper bound for numeric types.
	Max any

	// ReadOnly rejects writes from bus peers and SetValuesLocally.
	ReadOnly bool

	// Format overrides the text representation of the value.
	Format func(value any) string
}

// VariantType returns the declared type tag.
func (d Declaration) VariantType() variant.Type {
	return d.Type
}

// HasMin returns true if a lower bound is declared.
func (d Declaration) HasMin() bool { return d.Min != nil }

// HasMax returns true if an upper bound is declared.
func (d Declaration) HasMax() bool { return d.Max != nil }

// elem returns the declaration used for each element of an array type.
func (d Declaration) elem() Declaration {
	e := d
	e.Type = d.Type.Child()
	return e
}

// Property is a named declaration. Names carry no leading slash.
type Property struct {
	Name string
	Declaration
}

// S2Declaration opts a service into the S2 resource manager interface.
type S2Declaration struct {
	// Path is the object path; empty means DefaultS2Path.
	Path string `yaml:"path"`
}

// ObjectPath returns Path or the default.
func (d *S2Declaration) ObjectPath() string {
	if d == nil || d.Path == "" {
		return DefaultS2Path
	}
	return d.Path
}

// ServiceDeclaration describes a virtual service.
type ServiceDeclaration struct {
	// Name is the bus name, e.g. com.victronenergy.temperature.virtual_1.
	Name string

	// Properties in export order.
	Properties []Property

	// S2 is non-nil when the S2 interface is enabled.
	S2 *S2Declaration
}

// Property returns the declaration of the named property.
func (s *ServiceDeclaration) Property(name string) (Declaration, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Declaration, true
		}
	}
	return Declaration{}, false
}

// ParseDeclaration normalizes the accepted declaration shorthands: a bare
// type tag (string or variant.Type), a Declaration or *Declaration, or a
// map with the keys type, min, max, readonly and format.
func ParseDeclaration(v any) (Declaration, error) {
	switch d := v.(type) {
	case nil:
		return Declaration{}, nil
	case string:
		return Declaration{Type: variant.Type(d)}, nil
	case variant.Type:
		return Declaration{Type: d}, nil
	case Declaration:
		return d, nil
	case *Declaration:
		if d == nil {
			return Declaration{}, nil
		}
		return *d, nil
	case map[string]any:
		return declarationFromMap(d)
	default:
		return Declaration{}, fmt.Errorf("%w: unsupported form %T", ErrInvalidDeclaration, v)
	}
}

func declarationFromMap(m map[string]any) (Declaration, error) {
	var d Declaration
	for k, v := range m {
		switch strings.ToLower(k) {
		case "type":
			s, ok := v.(string)
			if !ok {
				return Declaration{}, fmt.Errorf("%w: type must be a string, got %T", ErrInvalidDeclaration, v)
			}
			d.Type = variant.Type(s)
		case "min":
			if err := checkBound("min", v); err != nil {
				return Declaration{}, err
			}
			d.Min = v
		case "max":
			if err := checkBound("max", v); err != nil {
				return Declaration{}, err
			}
			d.Max = v
		case "readonly":
			b, ok := v.(bool)
			if !ok {
				return Declaration{}, fmt.Errorf("%w: readonly must be a boolean, got %T", ErrInvalidDeclaration, v)
			}
			d.ReadOnly = b
		case "format":
			f, err := parseFormat(v)
			if err != nil {
				return Declaration{}, err
			}
			d.Format = f
		default:
			return Declaration{}, fmt.Errorf("%w: unknown key %q", ErrInvalidDeclaration, k)
		}
	}
	return d, nil
}

func checkBound(key string, v any) error {
	if v == nil {
		return nil
	}
	if _, ok := variant.ToFloat64(v); !ok {
		return fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidDeclaration, key, v)
	}
	return nil
}

// UnmarshalYAML accepts a scalar type tag or a mapping:
//
//	Temperature: d
//	Level: {type: i, min: 0, max: 100, readonly: true}
func (d *Declaration) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*d = Declaration{Type: variant.Type(s)}
		return nil

	case yaml.MappingNode:
		var raw map[string]any
		if err := node.Decode(&raw); err != nil {
			return err
		}
		parsed, err := declarationFromMap(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*d = parsed
		return nil

	default:
		return fmt.Errorf("%w: line %d: expected type tag or mapping", ErrInvalidDeclaration, node.Line)
	}
}
