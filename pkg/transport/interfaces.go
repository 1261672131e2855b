package transport

import (
	"context"
	"errors"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// Well-known names.
const (
	BusItemInterface = "com.victronenergy.BusItem"

	SettingsDestination = "com.victronenergy.settings"
	SettingsInterface   = "com.victronenergy.Settings"
	SettingsPath        = "/"
)

// Transport errors.
var (
	ErrUnsupportedHandler = errors.New("unsupported handler type")
	ErrNoObject           = errors.New("no object at path")
	ErrUnknownMethod      = errors.New("unknown method")
	ErrSignature          = errors.New("body does not match signature")
	ErrNameTaken          = errors.New("bus name already taken")
	ErrClosed             = errors.New("connection closed")
)

// Arg is a named, typed method or signal argument.
type Arg struct {
	Name string
	Type string
}

// Method describes an exported method.
type Method struct {
	Name string
	In   []Arg
	Out  []Arg
}

// Signal describes an exported signal.
type Signal struct {
	Name string
	Args []Arg
}

// InterfaceDesc describes the interface of an exported object.
type InterfaceDesc struct {
	Name    string
	Methods []Method
	Signals []Signal
}

// HasSignal returns true if the interface declares the named signal.
func (d InterfaceDesc) HasSignal(name string) bool {
	for _, s := range d.Signals {
		if s.Name == name {
			return true
		}
	}
	return false
}

// RootHandler serves the BusItem root object.
type RootHandler interface {
	GetItems() []model.Item
	GetValues() []model.KeyValue
	SetValues(values []model.KeyValue) (int32, error)
}

// ItemHandler serves a per-property BusItem object.
type ItemHandler interface {
	GetValue() variant.Variant
	GetText() string
	SetValue(v variant.Variant) int32
	GetMin() variant.Variant
	GetMax() variant.Variant
}

// S2Handler serves the S2 resource manager object.
type S2Handler interface {
	Discover() bool
	Connect(cemID string, keepAliveInterval int32) (bool, error)
	Disconnect(cemID string)
	Message(cemID, message string)
	KeepAlive(cemID string) bool
}

// Emitter sends signals from one exported object.
type Emitter interface {
	Emit(signal string, args ...any) error
}

// Exporter registers objects on the bus. The handler must implement
// RootHandler, ItemHandler or S2Handler.
type Exporter interface {
	Export(path string, desc InterfaceDesc, handler any) (Emitter, error)
}

// Call is a remote method call.
type Call struct {
	Destination string
	Path        string
	Interface   string
	Member      string

	// Signature of Body. Empty means inferred from the Go types.
	Signature string
	Body      []any
}

// Invoker calls remote methods. Result values of type dbus.Variant are
// returned as variant.Variant.
type Invoker interface {
	Invoke(ctx context.Context, call Call) ([]any, error)
}

// Bus exports local objects and calls remote ones.
type Bus interface {
	Exporter
	Invoker
}

// Interface descriptions of the exported objects.
var (
	RootInterface = InterfaceDesc{
		Name: BusItemInterface,
		Methods: []Method{
			{Name: "GetItems", Out: []Arg{{"items", "a{sa{sv}}"}}},
			{Name: "GetValue", Out: []Arg{{"value", "a{sv}"}}},
			{Name: "SetValues", In: []Arg{{"values", "a{sv}"}}, Out: []Arg{{"status", "i"}}},
		},
		Signals: []Signal{
			{Name: "ItemsChanged", Args: []Arg{{"changes", "a{sa{sv}}"}}},
		},
	}

	ItemInterface = InterfaceDesc{
		Name: BusItemInterface,
		Methods: []Method{
			{Name: "GetValue", Out: []Arg{{"value", "v"}}},
			{Name: "GetText", Out: []Arg{{"text", "s"}}},
			{Name: "SetValue", In: []Arg{{"value", "v"}}, Out: []Arg{{"status", "i"}}},
			{Name: "GetMin", Out: []Arg{{"min", "v"}}},
			{Name: "GetMax", Out: []Arg{{"max", "v"}}},
		},
	}

	S2Interface = InterfaceDesc{
		Name: "com.victronenergy.S2",
		Methods: []Method{
			{Name: "Discover", Out: []Arg{{"available", "b"}}},
			{Name: "Connect", In: []Arg{{"cemId", "s"}, {"keepAliveInterval", "i"}}, Out: []Arg{{"success", "b"}}},
			{Name: "Disconnect", In: []Arg{{"cemId", "s"}}},
			{Name: "Message", In: []Arg{{"cemId", "s"}, {"message", "s"}}},
			{Name: "KeepAlive", In: []Arg{{"cemId", "s"}}, Out: []Arg{{"success", "b"}}},
		},
		Signals: []Signal{
			{Name: "Message", Args: []Arg{{"cemId", "s"}, {"message", "s"}}},
			{Name: "Disconnect", Args: []Arg{{"cemId", "s"}, {"reason", "s"}}},
		},
	}
)

// Compile-time interface satisfaction checks.
var (
	_ Bus = (*Conn)(nil)
	_ Bus = (*MemoryBus)(nil)
)
