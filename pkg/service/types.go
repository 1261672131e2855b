package service

import (
	"errors"
	"log/slog"

	"github.com/Chris927/dbus-victron-virtual/pkg/clock"
	"github.com/Chris927/dbus-victron-virtual/pkg/log"
	"github.com/Chris927/dbus-victron-virtual/pkg/s2"
	"github.com/Chris927/dbus-victron-virtual/pkg/version"
)

// Service errors.
var (
	ErrNameRequired = errors.New("interface name is required")
	ErrNoValues     = errors.New("no values provided")
)

// DefaultConnectionTag is published as Mgmt/Connection.
const DefaultConnectionTag = "Virtual"

// DefaultProducts maps the product segment of a service name to its
// Victron product id.
func DefaultProducts() map[string]int32 {
	return map[string]int32{
		"temperature": 0xc060,
		"meteo":       0xc061,
		"grid":        0xc062,
		"tank":        0xc063,
		"heatpump":    0xc064,
		"battery":     0xc065,
		"pvinverter":  0xc066,
		"ev":          0xc067,
		"gps":         0xc068,
		"switch":      0xc069,
	}
}

// Config configures a Service.
type Config struct {
	// AddDefaults injects the Mgmt/*, ProductId and ProductName properties.
	AddDefaults bool

	// ProcessName and ProcessVersion are published under Mgmt/.
	ProcessName    string
	ProcessVersion string

	// ConnectionTag is published as Mgmt/Connection.
	ConnectionTag string

	// Products maps product names to product ids for ProductId.
	Products map[string]int32

	// S2Handlers are required when the declaration enables S2.
	S2Handlers s2.Handlers

	// Clock drives the S2 keepalive timer. Nil means the real clock.
	Clock clock.Clock

	// Logger is the optional logger for operational output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives a trace of bus calls and signals.
	// If nil, protocol logging is disabled.
	ProtocolLogger log.Logger
}

// DefaultConfig returns a Config with defaults enabled and the process
// identity from the version package.
func DefaultConfig() Config {
	return Config{
		AddDefaults:    true,
		ProcessName:    version.ProcessName,
		ProcessVersion: version.Current,
		ConnectionTag:  DefaultConnectionTag,
		Products:       DefaultProducts(),
	}
}
