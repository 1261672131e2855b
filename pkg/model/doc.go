// Package model holds the property declarations of a virtual service and
// the registry that owns their current values.
//
// # Declarations
//
// A ServiceDeclaration names the service and lists its properties in
// order. Each property has a Declaration:
//
//	Type      variant type tag ("b", "s", "i", "d", "ai", "ad", "as")
//	Min, Max  optional numeric bounds
//	ReadOnly  rejects writes from the bus and from SetValuesLocally
//	Format    optional text formatter for GetText and ItemsChanged
//
// A declaration may be written as a bare type tag or as a mapping; both
// forms are normalized by ParseDeclaration and by the YAML decoder.
//
// # Registry
//
// The Registry stores values keyed by property name, validates incoming
// writes, projects values into BusItem items (Value + Text) and reports
// committed changes to a Notifier as a single ItemsChanged batch.
//
// All Registry methods are safe for concurrent use. The Notifier is called
// without the registry lock held.
package model
