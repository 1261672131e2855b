package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Chris927/dbus-victron-virtual/pkg/clock"
	"github.com/Chris927/dbus-victron-virtual/pkg/s2"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
)

// CEM errors.
var (
	ErrUnavailable  = errors.New("S2 resource manager not available")
	ErrRejected     = errors.New("S2 connect rejected")
	ErrDisconnected = errors.New("disconnected by resource manager")
)

// CEM is the energy-manager side of an S2 session with one resource
// manager.
type CEM struct {
	inv    transport.Invoker
	dest   string
	path   string
	id     string
	keep   time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

// CEMConfig configures a CEM.
type CEMConfig struct {
	// Destination is the bus name of the resource manager's service.
	Destination string

	// Path is the S2 object path.
	Path string

	// ID identifies this CEM to the resource manager.
	ID string

	// KeepAlive is the interval announced in Connect and used for
	// keepalive calls. Whole seconds.
	KeepAlive time.Duration

	// Clock drives keepalives. Nil uses the real clock.
	Clock clock.Clock

	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// NewCEM creates a CEM calling through inv.
func NewCEM(inv transport.Invoker, cfg CEMConfig) *CEM {
	c := &CEM{
		inv:    inv,
		dest:   cfg.Destination,
		path:   cfg.Path,
		id:     cfg.ID,
		keep:   cfg.KeepAlive,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	return c
}

// ID returns the CEM id.
func (c *CEM) ID() string { return c.id }

// Connect discovers the resource manager and opens the session.
func (c *CEM) Connect(ctx context.Context) error {
	reply, err := c.call(ctx, "Discover", "")
	if err != nil {
		return err
	}
	if ok, _ := first[bool](reply); !ok {
		return ErrUnavailable
	}

	reply, err = c.call(ctx, "Connect", "si", c.id, int32(c.keep/time.Second))
	if err != nil {
		return err
	}
	if ok, _ := first[bool](reply); !ok {
		return ErrRejected
	}
	c.info("S2 session open", "rm", c.dest, "cemId", c.id, "keepalive", c.keep)
	return nil
}

// KeepAlive refreshes the session. False means the resource manager no
// longer knows this CEM.
func (c *CEM) KeepAlive(ctx context.Context) (bool, error) {
	reply, err := c.call(ctx, "KeepAlive", "s", c.id)
	if err != nil {
		return false, err
	}
	ok, _ := first[bool](reply)
	return ok, nil
}

// Send delivers one message to the resource manager.
func (c *CEM) Send(ctx context.Context, message string) error {
	_, err := c.call(ctx, "Message", "ss", c.id, message)
	return err
}

// Disconnect closes the session.
func (c *CEM) Disconnect(ctx context.Context) error {
	_, err := c.call(ctx, "Disconnect", "s", c.id)
	return err
}

// Run sends keepalives and dispatches the resource manager's signals
// addressed to this CEM until ctx is done, the session is dropped or
// signals closes.
func (c *CEM) Run(ctx context.Context, signals <-chan transport.Received, onMessage func(string)) error {
	ticker := c.clock.NewTicker(c.keep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			ok, err := c.KeepAlive(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: keepalive refused", ErrDisconnected)
			}

		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if len(sig.Body) != 2 {
				continue
			}
			id, _ := sig.Body[0].(string)
			payload, _ := sig.Body[1].(string)
			if id != c.id {
				continue
			}
			switch signalMember(sig.Name) {
			case s2.SignalMessage:
				onMessage(payload)
			case s2.SignalDisconnect:
				return fmt.Errorf("%w: %s", ErrDisconnected, payload)
			}
		}
	}
}

func (c *CEM) call(ctx context.Context, member, sig string, body ...any) ([]any, error) {
	return c.inv.Invoke(ctx, transport.Call{
		Destination: c.dest,
		Path:        c.path,
		Interface:   s2.InterfaceName,
		Member:      member,
		Signature:   sig,
		Body:        body,
	})
}

func (c *CEM) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

// signalMember strips the interface from a qualified signal name.
func signalMember(name string) string {
	return name[strings.LastIndexByte(name, '.')+1:]
}

func first[T any](reply []any) (T, bool) {
	var zero T
	if len(reply) == 0 {
		return zero, false
	}
	v, ok := reply[0].(T)
	return v, ok
}
