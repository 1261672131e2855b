package interaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

type fakeSubscriber struct {
	ch    chan transport.Received
	match transport.SignalMatch
	err   error
}

func (f *fakeSubscriber) Subscribe(_ context.Context, m transport.SignalMatch) (<-chan transport.Received, error) {
	f.match = m
	if f.err != nil {
		return nil, f.err
	}
	return f.ch, nil
}

type itemsRoot struct {
	items []model.Item
}

func (r *itemsRoot) GetItems() []model.Item                    { return r.items }
func (r *itemsRoot) GetValues() []model.KeyValue               { return nil }
func (r *itemsRoot) SetValues([]model.KeyValue) (int32, error) { return 0, nil }

func item(key string, v int32) model.Item {
	return model.Item{Key: key, Value: variant.New(variant.TypeInt, v), Text: variant.New(variant.TypeInt, v).String()}
}

func TestSubscriptionIsSubscribedTo(t *testing.T) {
	all := NewSubscription("com.victronenergy.tank.virtual_1")
	if !all.IsSubscribedTo("/Level") {
		t.Error("empty path list should match every path")
	}

	some := NewSubscription("x", "/Level", "/Remaining")
	assert.True(t, some.IsSubscribedTo("/Remaining"))
	assert.False(t, some.IsSubscribedTo("/Capacity"))
}

func TestSubscriptionPathsWithoutSlash(t *testing.T) {
	sub := NewSubscription("x", "Temperature", "/Humidity")
	assert.Equal(t, []string{"/Temperature", "/Humidity"}, sub.Paths)
	assert.True(t, sub.IsSubscribedTo("/Temperature"))
	assert.True(t, sub.IsSubscribedTo("Humidity"))

	delta := sub.apply([]model.Item{item("/Temperature", 21), item("/Pressure", 1013)})
	assert.Equal(t, []model.Item{item("/Temperature", 21)}, delta)

	got, ok := sub.Value("Temperature")
	require.True(t, ok)
	assert.Equal(t, item("/Temperature", 21), got)
}

func TestSubscriptionApplyDelta(t *testing.T) {
	sub := NewSubscription("x", "/A", "/B")

	delta := sub.apply([]model.Item{item("/A", 1), item("/B", 2), item("/C", 3)})
	assert.Equal(t, []model.Item{item("/A", 1), item("/B", 2)}, delta)

	delta = sub.apply([]model.Item{item("/A", 1), item("/B", 5)})
	assert.Equal(t, []model.Item{item("/B", 5)}, delta)

	assert.Empty(t, sub.apply([]model.Item{item("/A", 1)}))

	got, ok := sub.Value("/B")
	require.True(t, ok)
	assert.Equal(t, item("/B", 5), got)
	_, ok = sub.Value("/C")
	assert.False(t, ok)

	assert.Equal(t, []model.Item{item("/A", 1), item("/B", 5)}, sub.Snapshot())
}

func TestWatch(t *testing.T) {
	const dest = "com.victronenergy.tank.virtual_1"
	bus := transport.NewMemoryBus(dest)
	_, err := bus.Export("/", transport.RootInterface, &itemsRoot{items: []model.Item{item("/Level", 10), item("/Capacity", 2)}})
	require.NoError(t, err)

	signals := &fakeSubscriber{ch: make(chan transport.Received, 4)}
	sub := NewSubscription(dest, "/Level")

	signals.ch <- transport.Received{Path: "/", Name: transport.BusItemInterface + ".ItemsChanged",
		Body: []any{[]model.Item{item("/Level", 10), item("/Capacity", 3)}}}
	signals.ch <- transport.Received{Body: []any{"garbage"}}
	signals.ch <- transport.Received{Body: []any{[]model.Item{item("/Level", 12)}}}
	close(signals.ch)

	var got [][]model.Item
	err = NewClient(bus).Watch(context.Background(), signals, sub, func(items []model.Item) {
		got = append(got, items)
	})

	require.NoError(t, err)
	assert.Equal(t, transport.SignalMatch{
		Sender:    dest,
		Path:      "/",
		Interface: transport.BusItemInterface,
		Member:    "ItemsChanged",
	}, signals.match)
	assert.Equal(t, [][]model.Item{
		{item("/Level", 10)},
		{item("/Level", 12)},
	}, got)
}

func TestWatchStopsOnContext(t *testing.T) {
	bus := transport.NewMemoryBus("x")
	_, err := bus.Export("/", transport.RootInterface, &itemsRoot{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = NewClient(bus).Watch(ctx, &fakeSubscriber{ch: make(chan transport.Received)}, NewSubscription("x"), func([]model.Item) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWatchErrors(t *testing.T) {
	client := NewClient(transport.NewMemoryBus("x"))

	err := client.Watch(context.Background(), &fakeSubscriber{}, NewSubscription(""), nil)
	assert.ErrorIs(t, err, ErrNoDestination)

	boom := errors.New("match rule rejected")
	err = client.Watch(context.Background(), &fakeSubscriber{err: boom}, NewSubscription("x"), nil)
	assert.ErrorIs(t, err, boom)

	// No root object exported.
	err = client.Watch(context.Background(), &fakeSubscriber{ch: make(chan transport.Received)}, NewSubscription("x"), nil)
	assert.ErrorIs(t, err, transport.ErrNoObject)
}
