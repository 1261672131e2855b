package interaction

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
)

// Subscriber delivers bus signals. transport.Conn implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, m transport.SignalMatch) (<-chan transport.Received, error)
}

// Subscription tracks the items of a remote service through its
// ItemsChanged signal.
type Subscription struct {
	mu sync.RWMutex

	// Destination is the watched service name.
	Destination string

	// Paths is the list of watched item paths (empty = all).
	Paths []string

	// values stores the last known items for delta detection.
	values map[string]model.Item
}

// NewSubscription watches paths of destination. No paths watches all.
// Paths may be given with or without their leading "/".
func NewSubscription(destination string, paths ...string) *Subscription {
	slashed := make([]string, len(paths))
	for i, p := range paths {
		slashed[i] = model.Slash(p)
	}
	return &Subscription{
		Destination: destination,
		Paths:       slashed,
		values:      make(map[string]model.Item),
	}
}

// IsSubscribedTo returns true if the path is part of this subscription.
func (s *Subscription) IsSubscribedTo(path string) bool {
	// Empty list means all paths
	if len(s.Paths) == 0 {
		return true
	}
	return slices.Contains(s.Paths, model.Slash(path))
}

// Value returns the last known item at path.
func (s *Subscription) Value(path string) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.values[model.Slash(path)]
	return it, ok
}

// Snapshot returns all known items in path order.
func (s *Subscription) Snapshot() []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]model.Item, len(keys))
	for i, k := range keys {
		out[i] = s.values[k]
	}
	return out
}

// apply stores the subscribed items and returns those that differ from
// the last known state.
func (s *Subscription) apply(items []model.Item) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]model.Item)
	}

	var delta []model.Item
	for _, it := range items {
		if !s.IsSubscribedTo(it.Key) {
			continue
		}
		if old, ok := s.values[it.Key]; ok && old.Text == it.Text && reflect.DeepEqual(old.Value, it.Value) {
			continue
		}
		s.values[it.Key] = it
		delta = append(delta, it)
	}
	return delta
}

// Watch primes sub with the remote GetItems and then calls fn with every
// change carried by ItemsChanged, until ctx is done or the signal stream
// ends. fn receives only subscribed items whose value or text changed.
func (c *Client) Watch(ctx context.Context, signals Subscriber, sub *Subscription, fn func([]model.Item)) error {
	if sub.Destination == "" {
		return ErrNoDestination
	}

	ch, err := signals.Subscribe(ctx, transport.SignalMatch{
		Sender:    sub.Destination,
		Path:      "/",
		Interface: transport.BusItemInterface,
		Member:    "ItemsChanged",
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", sub.Destination, err)
	}

	reply, err := c.call(ctx, Target{Destination: sub.Destination}.withDefaults(), "GetItems", "")
	if err != nil {
		return err
	}
	items, ok := reply.([]model.Item)
	if !ok {
		return fmt.Errorf("%w: GetItems returned %T", ErrUnexpectedReply, reply)
	}
	if delta := sub.apply(items); len(delta) > 0 {
		fn(delta)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-ch:
			if !ok {
				return nil
			}
			if len(sig.Body) != 1 {
				c.debugLog("ignoring ItemsChanged", "args", len(sig.Body))
				continue
			}
			items, ok := sig.Body[0].([]model.Item)
			if !ok {
				c.debugLog("ignoring ItemsChanged", "type", fmt.Sprintf("%T", sig.Body[0]))
				continue
			}
			if delta := sub.apply(items); len(delta) > 0 {
				fn(delta)
			}
		}
	}
}
