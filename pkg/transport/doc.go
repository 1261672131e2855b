// Package transport connects BusItem and S2 objects to D-Bus.
//
// The rest of the module sees the bus through two capabilities:
//
//	Exporter  registers an object (methods + signals) at a path
//	Invoker   calls a method on a remote object
//
// Conn implements both on top of github.com/godbus/dbus/v5. MemoryBus
// implements both in memory and dispatches Invoke calls to locally
// exported objects, for tests and dry runs.
//
// # Values
//
// Values cross this package as variant.Variant. Conn converts them to and
// from dbus.Variant, keeping the declared signature: the null encoding
// variant.Null() goes out as an empty "ai" array. Item lists become
// a{sa{sv}} dictionaries with "Value" and "Text" entries.
package transport
