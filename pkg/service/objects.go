package service

import (
	"fmt"
	"time"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/s2"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// Status codes returned by SetValue and SetValues.
const (
	StatusOK     int32 = 0
	StatusFailed int32 = -1
)

// rootObject serves "/".
type rootObject struct{ svc *Service }

func (o rootObject) GetItems() []model.Item {
	items := o.svc.registry.Project(nil, true)
	o.svc.logCall("/", "GetItems", nil, nil, time.Time{})
	return items
}

func (o rootObject) GetValues() []model.KeyValue {
	values := o.svc.registry.Values()
	o.svc.logCall("/", "GetValue", nil, nil, time.Time{})
	return values
}

// SetValues writes several properties at once. All values are decoded and
// validated before any is stored; a single failure leaves every property
// unchanged and returns StatusFailed. An unknown key is returned as an
// error to the caller.
func (o rootObject) SetValues(values []model.KeyValue) (int32, error) {
	s := o.svc
	start := s.clock.Now()

	validated := make(map[string]any, len(values))
	for _, kv := range values {
		name := model.Unslash(kv.Key)
		if !s.registry.Has(name) {
			err := fmt.Errorf("%w: %s", model.ErrUnknownProperty, name)
			s.logError("/", "SetValues", err, nil)
			return 0, err
		}
		v, err := s.decodeAndValidate(name, kv.Value)
		if err != nil {
			status := StatusFailed
			s.logError("/", "SetValues", err, &status)
			return status, nil
		}
		validated[name] = v
	}

	if len(validated) > 0 {
		s.registry.Commit(validated)
	}
	status := StatusOK
	s.logCall("/", "SetValues", values, &status, start)
	return status, nil
}

// itemObject serves "/<name>".
type itemObject struct {
	svc  *Service
	name string
}

func (o itemObject) path() string { return model.Slash(o.name) }

func (o itemObject) GetValue() variant.Variant {
	v, _ := o.svc.registry.Encoded(o.name)
	o.svc.logCall(o.path(), "GetValue", nil, nil, time.Time{})
	return v
}

func (o itemObject) GetText() string {
	text, _ := o.svc.registry.Text(o.name)
	o.svc.logCall(o.path(), "GetText", nil, nil, time.Time{})
	return text
}

// SetValue stores a new value and emits ItemsChanged for this property.
// Failures are logged and reported as StatusFailed only.
func (o itemObject) SetValue(v variant.Variant) int32 {
	s := o.svc
	start := s.clock.Now()

	val, err := s.decodeAndValidate(o.name, v)
	if err != nil {
		status := StatusFailed
		s.logError(o.path(), "SetValue", err, &status)
		return status
	}
	s.registry.Commit(map[string]any{o.name: val})

	status := StatusOK
	s.logCall(o.path(), "SetValue", []any{v}, &status, start)
	return status
}

func (o itemObject) GetMin() variant.Variant {
	d, _ := o.svc.registry.Declaration(o.name)
	o.svc.logCall(o.path(), "GetMin", nil, nil, time.Time{})
	return o.svc.encodeBound(o.name, d, d.Min)
}

func (o itemObject) GetMax() variant.Variant {
	d, _ := o.svc.registry.Declaration(o.name)
	o.svc.logCall(o.path(), "GetMax", nil, nil, time.Time{})
	return o.svc.encodeBound(o.name, d, d.Max)
}

// s2Object serves the S2 resource manager path.
type s2Object struct{ svc *Service }

func (o s2Object) Discover() bool {
	o.svc.logCall(o.svc.s2Path, "Discover", nil, nil, time.Time{})
	return o.svc.session.Discover()
}

func (o s2Object) Connect(cemID string, keepAliveInterval int32) (bool, error) {
	ok, err := o.svc.session.Connect(cemID, keepAliveInterval)
	if err != nil {
		o.svc.logError(o.svc.s2Path, "Connect", err, nil)
		return false, err
	}
	o.svc.logCall(o.svc.s2Path, "Connect", []any{cemID, keepAliveInterval, ok}, nil, time.Time{})
	return ok, nil
}

func (o s2Object) Disconnect(cemID string) {
	o.svc.logCall(o.svc.s2Path, "Disconnect", []any{cemID}, nil, time.Time{})
	o.svc.session.Disconnect(cemID)
}

func (o s2Object) Message(cemID, message string) {
	o.svc.logCall(o.svc.s2Path, "Message", []any{cemID, message}, nil, time.Time{})
	o.svc.session.Message(cemID, message)
}

func (o s2Object) KeepAlive(cemID string) bool {
	ok := o.svc.session.KeepAlive(cemID)
	o.svc.logCall(o.svc.s2Path, "KeepAlive", []any{cemID, ok}, nil, time.Time{})
	return ok
}

// decodeAndValidate rejects read-only properties, decodes the wire value
// and validates it against the declaration.
func (s *Service) decodeAndValidate(name string, v variant.Variant) (any, error) {
	d, ok := s.registry.Declaration(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownProperty, name)
	}
	if d.ReadOnly {
		s.warnf("rejected write to read-only property", "property", name)
		return nil, fmt.Errorf("%w: %s", model.ErrReadOnly, name)
	}
	raw, err := variant.Decode(v)
	if err != nil {
		s.warnf("decoding value failed", "property", name, "value", v, "error", err)
		return nil, fmt.Errorf("property %s: %w", name, err)
	}
	return s.registry.Validate(name, raw)
}

// encodeBound encodes a min or max bound: with the declared numeric type,
// the element type of a numeric array, or else the type inferred from the
// bound itself. An absent bound is null.
func (s *Service) encodeBound(name string, d model.Declaration, bound any) variant.Variant {
	if bound == nil {
		return variant.Null()
	}

	t := d.Type
	switch t {
	case variant.TypeInt, variant.TypeDouble:
	case variant.TypeIntArray, variant.TypeDoubleArray:
		t = t.Child()
	default:
		inferred, err := variant.InferType(bound)
		if err != nil {
			s.warnf("inferring bound type failed", "property", name, "error", err)
			return variant.Null()
		}
		t = inferred
	}

	v, err := variant.Encode(t, bound)
	if err != nil {
		s.warnf("encoding bound failed", "property", name, "error", err)
		return variant.Null()
	}
	return v
}

func (s *Service) warnf(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

var (
	_ transport.RootHandler = rootObject{}
	_ transport.ItemHandler = itemObject{}
	_ transport.S2Handler   = s2Object{}
	_ transport.S2Handler   = (*s2.Session)(nil)
)
