package transport

import (
	"fmt"
	"maps"
	"slices"

	"github.com/godbus/dbus/v5"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// ToDBusVariant converts a tagged value to a dbus.Variant with the same
// signature. An undeclared type lets godbus infer the signature.
func ToDBusVariant(v variant.Variant) (dbus.Variant, error) {
	if v.Type == variant.TypeUndeclared {
		if v.Value == nil {
			return dbus.MakeVariant(variant.Null().Value), nil
		}
		return dbus.MakeVariant(v.Value), nil
	}
	sig, err := dbus.ParseSignature(string(v.Type))
	if err != nil {
		return dbus.Variant{}, fmt.Errorf("variant signature %q: %w", v.Type, err)
	}
	return dbus.MakeVariantWithSignature(v.Value, sig), nil
}

// FromDBusVariant converts a dbus.Variant to a tagged value.
func FromDBusVariant(v dbus.Variant) variant.Variant {
	return variant.Variant{
		Type:  variant.Type(v.Signature().String()),
		Value: v.Value(),
	}
}

// ItemsToDBus converts items to the a{sa{sv}} form.
func ItemsToDBus(items []model.Item) (map[string]map[string]dbus.Variant, error) {
	out := make(map[string]map[string]dbus.Variant, len(items))
	for _, it := range items {
		v, err := ToDBusVariant(it.Value)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", it.Key, err)
		}
		out[it.Key] = map[string]dbus.Variant{
			"Value": v,
			"Text":  dbus.MakeVariant(it.Text),
		}
	}
	return out, nil
}

// KeyValuesToDBus converts key/value pairs to the a{sv} form.
func KeyValuesToDBus(kvs []model.KeyValue) (map[string]dbus.Variant, error) {
	out := make(map[string]dbus.Variant, len(kvs))
	for _, kv := range kvs {
		v, err := ToDBusVariant(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("value %s: %w", kv.Key, err)
		}
		out[kv.Key] = v
	}
	return out, nil
}

// KeyValuesFromDBus converts an a{sv} dictionary to key/value pairs.
// Dictionaries carry no order; pairs are returned in key order.
func KeyValuesFromDBus(m map[string]dbus.Variant) []model.KeyValue {
	keys := sortedKeys(m)
	out := make([]model.KeyValue, len(keys))
	for i, k := range keys {
		out[i] = model.KeyValue{Key: k, Value: FromDBusVariant(m[k])}
	}
	return out
}

// toDBusArg converts an outgoing signal or call argument.
func toDBusArg(a any) (any, error) {
	switch x := a.(type) {
	case variant.Variant:
		return ToDBusVariant(x)
	case []model.Item:
		return ItemsToDBus(x)
	case []model.KeyValue:
		return KeyValuesToDBus(x)
	case map[string]variant.Variant:
		return recordToDBus(x)
	case []map[string]variant.Variant:
		out := make([]map[string]dbus.Variant, len(x))
		for i, rec := range x {
			m, err := recordToDBus(rec)
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil
	default:
		return a, nil
	}
}

func recordToDBus(rec map[string]variant.Variant) (map[string]dbus.Variant, error) {
	out := make(map[string]dbus.Variant, len(rec))
	for k, v := range rec {
		dv, err := ToDBusVariant(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = dv
	}
	return out, nil
}

func toDBusArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		c, err := toDBusArg(a)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// fromDBusArg converts an incoming result value.
func fromDBusArg(a any) any {
	switch x := a.(type) {
	case dbus.Variant:
		return FromDBusVariant(x)
	case map[string]map[string]dbus.Variant:
		return itemsFromDBus(x)
	case map[string]dbus.Variant:
		out := make(map[string]variant.Variant, len(x))
		for k, v := range x {
			out[k] = FromDBusVariant(v)
		}
		return out
	case []map[string]dbus.Variant:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = fromDBusArg(m)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromDBusArg(e)
		}
		return out
	default:
		return a
	}
}

func fromDBusArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = fromDBusArg(a)
	}
	return out
}

// checkSignature verifies that body encodes to the declared signature.
func checkSignature(sig string, body []any) (err error) {
	if sig == "" {
		return nil
	}
	// SignatureOf panics on Go types that have no D-Bus encoding.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSignature, r)
		}
	}()
	want, err := dbus.ParseSignature(sig)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrSignature, sig, err)
	}
	got := dbus.SignatureOf(body...)
	if got.String() != want.String() {
		return fmt.Errorf("%w: got %q, want %q", ErrSignature, got.String(), want.String())
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
