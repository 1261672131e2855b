package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// Emitted is a signal recorded by MemoryBus.
type Emitted struct {
	Path      string
	Interface string
	Signal    string
	Args      []any
}

// RemoteFunc answers calls to destinations that are not served locally.
type RemoteFunc func(ctx context.Context, call Call) ([]any, error)

// MemoryBus is an in-process Bus. Invoke dispatches to objects exported on
// the same MemoryBus; calls for other destinations go to Remote.
type MemoryBus struct {
	// Name is the destination served by the exported objects. Empty
	// accepts any destination.
	Name string

	// Remote answers calls that no local object serves. If nil, such
	// calls fail with ErrNoObject.
	Remote RemoteFunc

	mu        sync.Mutex
	objects   map[string]exported
	order     []string
	signals   []Emitted
	listeners []chan<- Emitted
}

type exported struct {
	desc    InterfaceDesc
	handler any
}

// NewMemoryBus returns an empty bus serving name.
func NewMemoryBus(name string) *MemoryBus {
	return &MemoryBus{Name: name, objects: make(map[string]exported)}
}

// Export registers handler at path. Exporting a path twice replaces the
// object.
func (b *MemoryBus) Export(path string, desc InterfaceDesc, handler any) (Emitter, error) {
	if _, err := MethodTable(handler); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = make(map[string]exported)
	}
	if _, ok := b.objects[path]; !ok {
		b.order = append(b.order, path)
	}
	b.objects[path] = exported{desc: desc, handler: handler}
	return &memoryEmitter{bus: b, path: path, desc: desc}, nil
}

// Paths returns exported paths in export order.
func (b *MemoryBus) Paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.order...)
}

// Signals returns all signals emitted so far.
func (b *MemoryBus) Signals() []Emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Emitted(nil), b.signals...)
}

// ResetSignals forgets recorded signals.
func (b *MemoryBus) ResetSignals() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = nil
}

// Listen delivers every subsequent signal to ch. Sends do not block; a
// full channel drops the signal.
func (b *MemoryBus) Listen(ch chan<- Emitted) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, ch)
}

// Invoke calls a method on a locally exported object, or forwards to
// Remote.
func (b *MemoryBus) Invoke(ctx context.Context, call Call) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	obj, ok := b.objects[call.Path]
	local := ok && (b.Name == "" || call.Destination == b.Name) && obj.desc.Name == call.Interface
	remote := b.Remote
	b.mu.Unlock()

	if !local {
		if remote != nil {
			return remote(ctx, call)
		}
		return nil, fmt.Errorf("%w: %s %s", ErrNoObject, call.Destination, call.Path)
	}
	return dispatch(obj.handler, call)
}

func dispatch(handler any, call Call) ([]any, error) {
	switch h := handler.(type) {
	case RootHandler:
		return dispatchRoot(h, call)
	case ItemHandler:
		return dispatchItem(h, call)
	case S2Handler:
		return dispatchS2(h, call)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedHandler, handler)
}

func dispatchRoot(h RootHandler, call Call) ([]any, error) {
	switch call.Member {
	case "GetItems":
		return []any{h.GetItems()}, nil
	case "GetValue":
		return []any{h.GetValues()}, nil
	case "SetValues":
		var kvs []model.KeyValue
		if err := bodyArgs(call, &kvs); err != nil {
			return nil, err
		}
		status, err := h.SetValues(kvs)
		if err != nil {
			return nil, err
		}
		return []any{status}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call.Member)
}

func dispatchItem(h ItemHandler, call Call) ([]any, error) {
	switch call.Member {
	case "GetValue":
		return []any{h.GetValue()}, nil
	case "GetText":
		return []any{h.GetText()}, nil
	case "SetValue":
		var v variant.Variant
		if err := bodyArgs(call, &v); err != nil {
			return nil, err
		}
		return []any{h.SetValue(v)}, nil
	case "GetMin":
		return []any{h.GetMin()}, nil
	case "GetMax":
		return []any{h.GetMax()}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call.Member)
}

func dispatchS2(h S2Handler, call Call) ([]any, error) {
	switch call.Member {
	case "Discover":
		return []any{h.Discover()}, nil
	case "Connect":
		var (
			id       string
			interval int32
		)
		if err := bodyArgs(call, &id, &interval); err != nil {
			return nil, err
		}
		ok, err := h.Connect(id, interval)
		if err != nil {
			return nil, err
		}
		return []any{ok}, nil
	case "Disconnect":
		var id string
		if err := bodyArgs(call, &id); err != nil {
			return nil, err
		}
		h.Disconnect(id)
		return nil, nil
	case "Message":
		var id, msg string
		if err := bodyArgs(call, &id, &msg); err != nil {
			return nil, err
		}
		h.Message(id, msg)
		return nil, nil
	case "KeepAlive":
		var id string
		if err := bodyArgs(call, &id); err != nil {
			return nil, err
		}
		return []any{h.KeepAlive(id)}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call.Member)
}

// bodyArgs stores call.Body into dst pointers, checking count and types.
func bodyArgs(call Call, dst ...any) error {
	if len(call.Body) != len(dst) {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrSignature, call.Member, len(dst), len(call.Body))
	}
	for i, d := range dst {
		ok := false
		switch p := d.(type) {
		case *string:
			*p, ok = call.Body[i].(string)
		case *int32:
			*p, ok = call.Body[i].(int32)
		case *variant.Variant:
			*p, ok = call.Body[i].(variant.Variant)
		case *[]model.KeyValue:
			*p, ok = call.Body[i].([]model.KeyValue)
		}
		if !ok {
			return fmt.Errorf("%w: %s argument %d has type %T", ErrSignature, call.Member, i, call.Body[i])
		}
	}
	return nil
}

type memoryEmitter struct {
	bus  *MemoryBus
	path string
	desc InterfaceDesc
}

func (e *memoryEmitter) Emit(signal string, args ...any) error {
	if !e.desc.HasSignal(signal) {
		return fmt.Errorf("%w: signal %s not declared on %s", ErrUnknownMethod, signal, e.desc.Name)
	}
	sig := Emitted{Path: e.path, Interface: e.desc.Name, Signal: signal, Args: args}

	e.bus.mu.Lock()
	e.bus.signals = append(e.bus.signals, sig)
	listeners := append([]chan<- Emitted(nil), e.bus.listeners...)
	e.bus.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- sig:
		default:
		}
	}
	return nil
}
