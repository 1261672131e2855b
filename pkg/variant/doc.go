// Package variant converts between native Go values and the tagged-variant
// form used for BusItem values on the bus.
//
// # Type Tags
//
// A Variant pairs a D-Bus type signature with a payload:
//
//	b   bool          s   string         i   int32
//	d   float64       ai  []int32        ad  []float64
//	as  []string
//
// Any other signature starting with "a" is a generic array. Generic arrays
// carry no values in this convention; they only appear as a null encoding
// sent by peers.
//
// # Null
//
// A property without a value is encoded as an empty integer array:
//
//	Variant{Type: "ai", Value: []int32{}}
//
// This is the only valid null encoding. A non-empty "ai" payload is a
// decoding error, not a value.
//
// # Native Values
//
// Decode produces nil, bool, string, int, float64, []float64 or []string.
// Encode accepts any Go numeric kind for numeric tags and any slice kind for
// array tags.
package variant
