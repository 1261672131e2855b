package model

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// SignalItemsChanged is the change notification emitted by the registry.
const SignalItemsChanged = "ItemsChanged"

// Item is one entry of GetItems and ItemsChanged.
type Item struct {
	Key   string
	Value variant.Variant
	Text  string
}

// KeyValue is one entry of the root GetValue.
type KeyValue struct {
	Key   string
	Value variant.Variant
}

// Notifier receives committed changes.
type Notifier func(signal string, items []Item)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithNotifier sets the change notifier.
func WithNotifier(n Notifier) RegistryOption {
	return func(r *Registry) { r.notify = n }
}

// WithLogger sets the logger used for validation and encoding failures.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// Registry owns the declared properties and their current values.
type Registry struct {
	// emitMu orders notifications: it is held from a write until its
	// notifier call returns, so signals leave in commit order.
	emitMu sync.Mutex

	mu     sync.RWMutex
	props  []Property
	index  map[string]int
	values map[string]any

	notify Notifier
	logger *slog.Logger
}

// NewRegistry creates a registry for the declared properties. The initial
// values are copied; values for undeclared names are kept but never
// projected.
func NewRegistry(decl *ServiceDeclaration, values map[string]any, opts ...RegistryOption) *Registry {
	r := &Registry{
		index:  make(map[string]int),
		values: make(map[string]any, len(values)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if decl != nil {
		for _, p := range decl.Properties {
			r.declareLocked(p)
		}
	}
	for k, v := range values {
		r.values[k] = v
	}
	return r
}

// SetNotifier replaces the change notifier.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify = n
}

// Declare adds a property, or replaces the declaration of an existing one
// in place, and sets its value.
func (r *Registry) Declare(p Property, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.declareLocked(p)
	r.values[p.Name] = value
}

func (r *Registry) declareLocked(p Property) {
	if i, ok := r.index[p.Name]; ok {
		r.props[i] = p
		return
	}
	r.index[p.Name] = len(r.props)
	r.props = append(r.props, p)
}

// Has returns true if name is declared.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[name]
	return ok
}

// Declaration returns the declaration of name.
func (r *Registry) Declaration(name string) (Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return Declaration{}, false
	}
	return r.props[i].Declaration, true
}

// Names returns the declared property names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.props))
	for i, p := range r.props {
		names[i] = p.Name
	}
	return names
}

// Value returns the current value of name. The boolean is false if the
// property is not declared.
func (r *Registry) Value(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.index[name]; !ok {
		return nil, false
	}
	return r.values[name], true
}

// Snapshot returns a copy of all stored values.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Validate checks a new value for a declared property without storing it.
func (r *Registry) Validate(name string, raw any) (any, error) {
	d, ok := r.Declaration(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	v, err := Validate(name, d, raw)
	if err != nil {
		r.warn("validation failed", "property", name, "value", raw, "error", err)
		return nil, err
	}
	return v, nil
}

// Commit stores already validated values and notifies ItemsChanged with
// exactly the written keys, in declaration order. Undeclared keys are
// ignored. Concurrent commits notify in the order they were stored; the
// notifier must not write to the registry.
func (r *Registry) Commit(values map[string]any) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	names := make([]string, 0, len(values))
	for _, p := range r.props {
		if v, ok := values[p.Name]; ok {
			r.values[p.Name] = v
			names = append(names, p.Name)
		}
	}
	items := r.projectLocked(names, true)
	notify := r.notify
	r.mu.Unlock()

	if notify != nil && len(items) > 0 {
		notify(SignalItemsChanged, items)
	}
}

// Notify emits ItemsChanged for the named properties, or for all of them
// when names is nil, without changing any value.
func (r *Registry) Notify(names []string) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.RLock()
	items := r.projectLocked(names, true)
	notify := r.notify
	r.mu.RUnlock()

	if notify != nil && len(items) > 0 {
		notify(SignalItemsChanged, items)
	}
}

// Project returns items for the named properties, or all of them when
// names is nil, in declaration order. With withSlash, keys are prefixed
// with "/".
func (r *Registry) Project(names []string, withSlash bool) []Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projectLocked(names, withSlash)
}

func (r *Registry) projectLocked(names []string, withSlash bool) []Item {
	var filter map[string]bool
	if names != nil {
		filter = make(map[string]bool, len(names))
		for _, n := range names {
			filter[n] = true
		}
	}

	items := make([]Item, 0, len(r.props))
	for _, p := range r.props {
		if filter != nil && !filter[p.Name] {
			continue
		}
		v := r.values[p.Name]
		key := p.Name
		if withSlash {
			key = Slash(key)
		}
		items = append(items, Item{
			Key:   key,
			Value: r.encode(p, v),
			Text:  FormatText(p.Declaration, v),
		})
	}
	return items
}

// Values returns all properties as plain key/value pairs in declaration
// order.
func (r *Registry) Values() []KeyValue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]KeyValue, len(r.props))
	for i, p := range r.props {
		out[i] = KeyValue{Key: p.Name, Value: r.encode(p, r.values[p.Name])}
	}
	return out
}

// Encoded returns the wire form of the current value of name.
func (r *Registry) Encoded(name string) (variant.Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return variant.Variant{}, false
	}
	p := r.props[i]
	return r.encode(p, r.values[p.Name]), true
}

// Text returns the formatted current value of name.
func (r *Registry) Text(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return "", false
	}
	p := r.props[i]
	return FormatText(p.Declaration, r.values[p.Name]), true
}

// encode falls back to null when the stored value does not match the
// declared type.
func (r *Registry) encode(p Property, v any) variant.Variant {
	enc, err := variant.EncodeAs(p.Declaration, v)
	if err != nil {
		r.warn("encoding value failed", "property", p.Name, "error", err)
		return variant.Null()
	}
	return enc
}

func (r *Registry) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

// Slash adds a leading "/" to name if missing.
func Slash(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// Unslash removes one leading "/" from name.
func Unslash(name string) string {
	return strings.TrimPrefix(name, "/")
}
