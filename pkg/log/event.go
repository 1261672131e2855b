package log

import (
	"time"
)

// Event represents a protocol log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the service instance (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Service is the bus name of the local service.
	Service string `cbor:"6,keyasint,omitempty"`

	// Path is the object path involved.
	Path string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Call        *CallEvent        `cbor:"10,keyasint,omitempty"`
	Signal      *SignalEvent      `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a call received from the bus.
	DirectionIn Direction = 0
	// DirectionOut indicates a signal or call sent to the bus.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the bus connection.
	LayerTransport Layer = 0
	// LayerService is the BusItem object tree.
	LayerService Layer = 1
	// LayerSession is the S2 session.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerService:
		return "SERVICE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	CategoryCall   Category = 0
	CategorySignal Category = 1
	CategoryState  Category = 2
	CategoryError  Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCall:
		return "CALL"
	case CategorySignal:
		return "SIGNAL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CallEvent captures a method call.
type CallEvent struct {
	Interface string `cbor:"1,keyasint"`
	Member    string `cbor:"2,keyasint"`

	// Args is a CBOR-compatible representation of the call arguments.
	Args any `cbor:"3,keyasint,omitempty"`

	// Status is the integer result of SetValue/SetValues calls.
	Status *int32 `cbor:"4,keyasint,omitempty"`

	// Duration is the handler processing time. Stored as nanoseconds.
	Duration *time.Duration `cbor:"5,keyasint,omitempty"`
}

// SignalEvent captures an emitted signal.
type SignalEvent struct {
	Interface string `cbor:"1,keyasint"`
	Member    string `cbor:"2,keyasint"`
	Args      any    `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// CEMID is the S2 client involved, if any.
	CEMID string `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityService indicates the exported service (registered, closed).
	StateEntityService StateEntity = 0
	// StateEntityS2 indicates the S2 resource manager session.
	StateEntityS2 StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityService:
		return "SERVICE"
	case StateEntityS2:
		return "S2"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the status returned to the caller (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
