package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// Client errors.
var (
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrNoDestination   = errors.New("destination is required")
	ErrPathRequired    = errors.New("setting path is required")
)

// DeviceInstancePath is ignored by Victron services when written through
// SetValue.
const DeviceInstancePath = "/DeviceInstance"

// Setting is one entry of the settings service.
type Setting struct {
	Path    string
	Default any

	// Type of Default, Min and Max. Empty infers the type of Default and
	// encodes the bounds as doubles.
	Type variant.Type

	// Min and Max are optional; nil sends the null encoding.
	Min any
	Max any
}

// Target addresses a BusItem object on another service.
type Target struct {
	Destination string

	// Interface defaults to com.victronenergy.BusItem.
	Interface string

	// Path defaults to "/".
	Path string
}

func (t Target) withDefaults() Target {
	if t.Interface == "" {
		t.Interface = transport.BusItemInterface
	}
	if t.Path == "" {
		t.Path = "/"
	}
	return t
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for warnings and call traces.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client calls BusItem methods and the settings service on other bus
// peers. Calls are not retried; remote errors are returned wrapped.
type Client struct {
	inv    transport.Invoker
	logger *slog.Logger
}

// NewClient creates a client that sends calls through inv.
func NewClient(inv transport.Invoker, opts ...Option) *Client {
	c := &Client{inv: inv}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddSettings creates settings on com.victronenergy.settings. The reply
// is returned as received.
func (c *Client) AddSettings(ctx context.Context, settings []Setting) ([]any, error) {
	records := make([]map[string]variant.Variant, 0, len(settings))
	for _, s := range settings {
		rec, err := settingRecord(s)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	reply, err := c.inv.Invoke(ctx, transport.Call{
		Destination: transport.SettingsDestination,
		Path:        transport.SettingsPath,
		Interface:   transport.SettingsInterface,
		Member:      "AddSettings",
		Signature:   "aa{sv}",
		Body:        []any{records},
	})
	if err != nil {
		return nil, fmt.Errorf("adding settings: %w", err)
	}
	c.debugLog("settings added", "count", len(records))
	return reply, nil
}

// RemoveSettings deletes settings by path.
func (c *Client) RemoveSettings(ctx context.Context, settings []Setting) ([]any, error) {
	paths := make([]string, len(settings))
	for i, s := range settings {
		paths[i] = s.Path
	}

	reply, err := c.inv.Invoke(ctx, transport.Call{
		Destination: transport.SettingsDestination,
		Path:        transport.SettingsPath,
		Interface:   transport.SettingsInterface,
		Member:      "RemoveSettings",
		Signature:   "as",
		Body:        []any{paths},
	})
	if err != nil {
		return nil, fmt.Errorf("removing settings: %w", err)
	}
	c.debugLog("settings removed", "count", len(paths))
	return reply, nil
}

func settingRecord(s Setting) (map[string]variant.Variant, error) {
	if s.Path == "" {
		return nil, ErrPathRequired
	}

	defType := s.Type
	if defType == variant.TypeUndeclared {
		t, err := variant.InferType(s.Default)
		if err != nil {
			return nil, fmt.Errorf("setting %s default: %w", s.Path, err)
		}
		defType = t
	}
	def, err := variant.Encode(defType, s.Default)
	if err != nil {
		return nil, fmt.Errorf("setting %s default: %w", s.Path, err)
	}

	boundType := s.Type
	if boundType == variant.TypeUndeclared {
		boundType = variant.TypeDouble
	}
	lo, err := variant.Encode(boundType, s.Min)
	if err != nil {
		return nil, fmt.Errorf("setting %s min: %w", s.Path, err)
	}
	hi, err := variant.Encode(boundType, s.Max)
	if err != nil {
		return nil, fmt.Errorf("setting %s max: %w", s.Path, err)
	}

	return map[string]variant.Variant{
		"path":    variant.New(variant.TypeString, s.Path),
		"default": def,
		"min":     lo,
		"max":     hi,
	}, nil
}

// SetValue writes value to a remote BusItem and returns the status the
// peer replied with. An empty t infers the type from value.
func (c *Client) SetValue(ctx context.Context, target Target, value any, t variant.Type) (int32, error) {
	target = target.withDefaults()
	if target.Destination == "" {
		return 0, ErrNoDestination
	}
	if target.Path == DeviceInstancePath {
		c.warn("setValue called for path /DeviceInstance, this will be ignored by Victron services.",
			"destination", target.Destination)
	}

	if t == variant.TypeUndeclared {
		inferred, err := variant.InferType(value)
		if err != nil {
			return 0, fmt.Errorf("SetValue %s: %w", target.Path, err)
		}
		t = inferred
	}
	v, err := variant.Encode(t, value)
	if err != nil {
		return 0, fmt.Errorf("SetValue %s: %w", target.Path, err)
	}

	reply, err := c.call(ctx, target, "SetValue", "v", v)
	if err != nil {
		return 0, err
	}
	status, ok := reply.(int32)
	if !ok {
		return 0, fmt.Errorf("%w: SetValue returned %T", ErrUnexpectedReply, reply)
	}
	return status, nil
}

// GetValue reads the value of a remote BusItem.
func (c *Client) GetValue(ctx context.Context, target Target) (variant.Variant, error) {
	return c.getVariant(ctx, target, "GetValue")
}

// GetMin reads the lower bound of a remote BusItem.
func (c *Client) GetMin(ctx context.Context, target Target) (variant.Variant, error) {
	return c.getVariant(ctx, target, "GetMin")
}

// GetMax reads the upper bound of a remote BusItem.
func (c *Client) GetMax(ctx context.Context, target Target) (variant.Variant, error) {
	return c.getVariant(ctx, target, "GetMax")
}

func (c *Client) getVariant(ctx context.Context, target Target, member string) (variant.Variant, error) {
	target = target.withDefaults()
	if target.Destination == "" {
		return variant.Variant{}, ErrNoDestination
	}
	reply, err := c.call(ctx, target, member, "")
	if err != nil {
		return variant.Variant{}, err
	}
	v, ok := reply.(variant.Variant)
	if !ok {
		return variant.Variant{}, fmt.Errorf("%w: %s returned %T", ErrUnexpectedReply, member, reply)
	}
	return v, nil
}

// call invokes member and returns its single reply value.
func (c *Client) call(ctx context.Context, target Target, member, sig string, body ...any) (any, error) {
	c.debugLog("remote call", "destination", target.Destination, "path", target.Path, "member", member)
	reply, err := c.inv.Invoke(ctx, transport.Call{
		Destination: target.Destination,
		Path:        target.Path,
		Interface:   target.Interface,
		Member:      member,
		Signature:   sig,
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s on %s: %w", member, target.Path, target.Destination, err)
	}
	if len(reply) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedReply, member, len(reply))
	}
	return reply[0], nil
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
