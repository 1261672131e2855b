package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Chris927/dbus-victron-virtual/pkg/clock"
	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/s2"
	"github.com/Chris927/dbus-victron-virtual/pkg/service"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport/mocks"
)

const rmName = "com.victronenergy.evcharger.virtual_1"

type rmEvents struct {
	messages   chan string
	keepAlives chan string
}

// newRM exports a resource manager with S2 enabled on a memory bus.
func newRM(t *testing.T) (*service.Service, *transport.MemoryBus, *rmEvents) {
	t.Helper()
	ev := &rmEvents{messages: make(chan string, 4), keepAlives: make(chan string, 4)}

	cfg := service.DefaultConfig()
	cfg.AddDefaults = false
	cfg.S2Handlers = s2.Handlers{
		Connect:    func(string, int32) {},
		Disconnect: func(string) {},
		Message:    func(_, msg string) { ev.messages <- msg },
		KeepAlive:  func(id string) { ev.keepAlives <- id },
	}

	bus := transport.NewMemoryBus(rmName)
	decl := &model.ServiceDeclaration{Name: rmName, S2: &model.S2Declaration{}}
	svc, err := service.New(bus, decl, nil, cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, bus, ev
}

func newTestCEM(inv transport.Invoker, id string, c clock.Clock) *CEM {
	return NewCEM(inv, CEMConfig{
		Destination: rmName,
		Path:        model.DefaultS2Path,
		ID:          id,
		KeepAlive:   30 * time.Second,
		Clock:       c,
	})
}

func TestCEMConnect(t *testing.T) {
	svc, bus, _ := newRM(t)

	cem := newTestCEM(bus, "cem-1", nil)
	require.NoError(t, cem.Connect(context.Background()))

	assert.Equal(t, "cem-1", svc.S2().ConnectedCEM())
	assert.Equal(t, 30*time.Second, svc.S2().KeepAliveInterval())
}

func TestCEMConnectRejected(t *testing.T) {
	_, bus, _ := newRM(t)

	require.NoError(t, newTestCEM(bus, "cem-1", nil).Connect(context.Background()))
	err := newTestCEM(bus, "cem-2", nil).Connect(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
}

func TestCEMConnectUnavailable(t *testing.T) {
	inv := mocks.NewMockInvoker(t)
	inv.EXPECT().Invoke(mock.Anything, mock.MatchedBy(func(c transport.Call) bool {
		return c.Member == "Discover"
	})).Return([]any{false}, nil)

	err := newTestCEM(inv, "cem-1", nil).Connect(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCEMSendAndDisconnect(t *testing.T) {
	svc, bus, ev := newRM(t)
	cem := newTestCEM(bus, "cem-1", nil)
	require.NoError(t, cem.Connect(context.Background()))

	require.NoError(t, cem.Send(context.Background(), `{"message_type":"Handshake"}`))
	assert.Equal(t, `{"message_type":"Handshake"}`, <-ev.messages)

	require.NoError(t, cem.Disconnect(context.Background()))
	assert.Equal(t, s2.StateIdle, svc.S2().State())
}

func TestCEMRunSendsKeepAlive(t *testing.T) {
	_, bus, ev := newRM(t)
	fc := clock.NewFake(time.Now())
	cem := newTestCEM(bus, "cem-1", fc)
	require.NoError(t, cem.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cem.Run(ctx, make(chan transport.Received), func(string) {}) }()

	require.Eventually(t, func() bool { return fc.Pending() == 1 }, time.Second, time.Millisecond)
	fc.Advance(30 * time.Second)

	select {
	case id := <-ev.keepAlives:
		assert.Equal(t, "cem-1", id)
	case <-time.After(time.Second):
		t.Fatal("no keepalive")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCEMRunKeepAliveRefused(t *testing.T) {
	inv := mocks.NewMockInvoker(t)
	inv.EXPECT().Invoke(mock.Anything, mock.Anything).Return([]any{false}, nil)

	fc := clock.NewFake(time.Now())
	cem := newTestCEM(inv, "cem-1", fc)

	done := make(chan error, 1)
	go func() { done <- cem.Run(context.Background(), make(chan transport.Received), func(string) {}) }()

	require.Eventually(t, func() bool { return fc.Pending() == 1 }, time.Second, time.Millisecond)
	fc.Advance(30 * time.Second)

	assert.ErrorIs(t, <-done, ErrDisconnected)
}

func TestCEMRunSignals(t *testing.T) {
	cem := newTestCEM(mocks.NewMockInvoker(t), "cem-1", clock.NewFake(time.Now()))

	signals := make(chan transport.Received, 4)
	signals <- transport.Received{Name: "com.victronenergy.S2.Message", Body: []any{"cem-2", "not for us"}}
	signals <- transport.Received{Name: "com.victronenergy.S2.Message", Body: []any{"cem-1", "hello"}}
	signals <- transport.Received{Name: "com.victronenergy.S2.Disconnect", Body: []any{"cem-1", s2.ReasonKeepAliveMissed}}

	var got []string
	err := cem.Run(context.Background(), signals, func(msg string) { got = append(got, msg) })

	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Contains(t, err.Error(), s2.ReasonKeepAliveMissed)
	assert.Equal(t, []string{"hello"}, got)
}

func TestCEMRunSignalsClosed(t *testing.T) {
	cem := newTestCEM(mocks.NewMockInvoker(t), "cem-1", clock.NewFake(time.Now()))

	signals := make(chan transport.Received)
	close(signals)
	assert.NoError(t, cem.Run(context.Background(), signals, func(string) {}))
}

func TestSignalMember(t *testing.T) {
	assert.Equal(t, "Message", signalMember("com.victronenergy.S2.Message"))
	assert.Equal(t, "Disconnect", signalMember("Disconnect"))
}
