package transport

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

// Bus kinds accepted by Options.Bus.
const (
	BusSession = "session"
	BusSystem  = "system"
)

// Options configures Dial.
type Options struct {
	// Bus selects the session or system bus. Ignored when Address is set.
	Bus string

	// Address is an explicit bus address, e.g. "tcp:host=venus.local,port=78".
	Address string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultOptions returns options for the system bus, where Venus OS
// services live.
func DefaultOptions() Options {
	return Options{Bus: BusSystem}
}

// Conn is a D-Bus connection that exports BusItem and S2 objects.
type Conn struct {
	conn   *dbus.Conn
	logger *slog.Logger

	mu    sync.Mutex
	nodes map[string]*introspect.Interface // exported path -> interface
	intro map[string]bool                  // paths with an Introspectable
}

// Dial connects to a bus.
func Dial(opts Options) (*Conn, error) {
	var (
		c   *dbus.Conn
		err error
	)
	switch {
	case opts.Address != "":
		c, err = dbus.Connect(opts.Address)
	case opts.Bus == BusSession:
		c, err = dbus.ConnectSessionBus()
	case opts.Bus == BusSystem, opts.Bus == "":
		c, err = dbus.ConnectSystemBus()
	default:
		return nil, fmt.Errorf("unknown bus %q", opts.Bus)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to bus: %w", err)
	}
	return newConn(c, opts.Logger), nil
}

func newConn(c *dbus.Conn, logger *slog.Logger) *Conn {
	return &Conn{
		conn:   c,
		logger: logger,
		nodes:  make(map[string]*introspect.Interface),
		intro:  make(map[string]bool),
	}
}

// RequestName claims a well-known bus name.
func (c *Conn) RequestName(name string) error {
	reply, err := c.conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("requesting name %s: %w", name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner && reply != dbus.RequestNameReplyAlreadyOwner {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	c.debugLog("bus name acquired", "name", name)
	return nil
}

// UniqueName returns the connection's unique bus name.
func (c *Conn) UniqueName() string {
	names := c.conn.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Export registers handler at path.
func (c *Conn) Export(objPath string, desc InterfaceDesc, handler any) (Emitter, error) {
	table, err := MethodTable(handler)
	if err != nil {
		return nil, err
	}

	p := dbus.ObjectPath(objPath)
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid object path %q", objPath)
	}
	if err := c.conn.ExportMethodTable(table, p, desc.Name); err != nil {
		return nil, fmt.Errorf("exporting %s: %w", objPath, err)
	}
	if err := c.registerIntrospection(objPath, desc); err != nil {
		return nil, err
	}

	c.debugLog("object exported", "path", objPath, "interface", desc.Name)
	return &connEmitter{conn: c, path: p, desc: desc}, nil
}

// Invoke calls a remote method and waits for the reply or ctx.
func (c *Conn) Invoke(ctx context.Context, call Call) ([]any, error) {
	body, err := toDBusArgs(call.Body)
	if err != nil {
		return nil, err
	}
	if err := checkSignature(call.Signature, body); err != nil {
		return nil, err
	}

	obj := c.conn.Object(call.Destination, dbus.ObjectPath(call.Path))
	method := call.Interface + "." + call.Member
	c.debugLog("invoke", "destination", call.Destination, "path", call.Path, "method", method)

	res := obj.CallWithContext(ctx, method, 0, body...)
	if res.Err != nil {
		return nil, fmt.Errorf("%s %s on %s: %w", method, call.Path, call.Destination, res.Err)
	}
	return fromDBusArgs(res.Body), nil
}

// SignalMatch selects signals for Subscribe.
type SignalMatch struct {
	Sender    string
	Path      string
	Interface string
	Member    string
}

// Received is a signal delivered by Subscribe.
type Received struct {
	Sender string
	Path   string
	Name   string
	Body   []any
}

// Subscribe delivers matching signals on the returned channel until ctx is
// done. A well-known Sender is resolved to its current owner and followed
// through NameOwnerChanged, since signals carry the unique name.
func (c *Conn) Subscribe(ctx context.Context, m SignalMatch) (<-chan Received, error) {
	var opts []dbus.MatchOption
	if m.Sender != "" {
		opts = append(opts, dbus.WithMatchSender(m.Sender))
	}
	if m.Path != "" {
		opts = append(opts, dbus.WithMatchObjectPath(dbus.ObjectPath(m.Path)))
	}
	if m.Interface != "" {
		opts = append(opts, dbus.WithMatchInterface(m.Interface))
	}
	if m.Member != "" {
		opts = append(opts, dbus.WithMatchMember(m.Member))
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("adding signal match: %w", err)
	}

	owner := m.Sender
	var ownerOpts []dbus.MatchOption
	if m.Sender != "" && !strings.HasPrefix(m.Sender, ":") {
		ownerOpts = []dbus.MatchOption{
			dbus.WithMatchSender("org.freedesktop.DBus"),
			dbus.WithMatchInterface("org.freedesktop.DBus"),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchArg(0, m.Sender),
		}
		if err := c.conn.AddMatchSignal(ownerOpts...); err != nil {
			_ = c.conn.RemoveMatchSignal(opts...)
			return nil, fmt.Errorf("adding owner match: %w", err)
		}
		owner = ""
		if err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetNameOwner", 0, m.Sender).Store(&owner); err != nil {
			// Not on the bus yet; NameOwnerChanged fills owner in.
			c.debugLog("sender has no owner", "name", m.Sender, "error", err)
		}
	}

	raw := make(chan *dbus.Signal, 16)
	c.conn.Signal(raw)

	out := make(chan Received, 16)
	go func() {
		defer close(out)
		defer c.conn.RemoveSignal(raw)
		defer func() {
			_ = c.conn.RemoveMatchSignal(opts...)
			if ownerOpts != nil {
				_ = c.conn.RemoveMatchSignal(ownerOpts...)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-raw:
				if !ok {
					return
				}
				if ownerOpts != nil {
					if next, ok := ownerChange(m.Sender, sig); ok {
						owner = next
						continue
					}
				}
				if !signalMatches(m, owner, sig) {
					continue
				}
				r := Received{Sender: sig.Sender, Path: string(sig.Path), Name: sig.Name, Body: fromDBusArgs(sig.Body)}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// signalMatches reports whether sig satisfies m. owner is the unique name
// currently holding m.Sender; it is empty while the name has no owner.
func signalMatches(m SignalMatch, owner string, sig *dbus.Signal) bool {
	if m.Sender != "" && (owner == "" || sig.Sender != owner) {
		return false
	}
	if m.Path != "" && string(sig.Path) != m.Path {
		return false
	}
	if m.Interface != "" || m.Member != "" {
		iface, member := splitName(sig.Name)
		if (m.Interface != "" && iface != m.Interface) || (m.Member != "" && member != m.Member) {
			return false
		}
	}
	return true
}

// ownerChange extracts the new owner of name from a NameOwnerChanged
// signal. The new owner is empty when name left the bus.
func ownerChange(name string, sig *dbus.Signal) (string, bool) {
	if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) != 3 {
		return "", false
	}
	changed, _ := sig.Body[0].(string)
	next, ok := sig.Body[2].(string)
	if changed != name || !ok {
		return "", false
	}
	return next, true
}

func splitName(full string) (iface, member string) {
	i := strings.LastIndexByte(full, '.')
	if i < 0 {
		return "", full
	}
	return full[:i], full[i+1:]
}

func (c *Conn) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

type connEmitter struct {
	conn *Conn
	path dbus.ObjectPath
	desc InterfaceDesc
}

func (e *connEmitter) Emit(signal string, args ...any) error {
	if !e.desc.HasSignal(signal) {
		return fmt.Errorf("%w: signal %s not declared on %s", ErrUnknownMethod, signal, e.desc.Name)
	}
	body, err := toDBusArgs(args)
	if err != nil {
		return err
	}
	return e.conn.conn.Emit(e.path, e.desc.Name+"."+signal, body...)
}

// MethodTable builds the godbus method table for a handler.
func MethodTable(handler any) (map[string]any, error) {
	switch h := handler.(type) {
	case RootHandler:
		return rootMethods(h), nil
	case ItemHandler:
		return itemMethods(h), nil
	case S2Handler:
		return s2Methods(h), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedHandler, handler)
	}
}

func rootMethods(h RootHandler) map[string]any {
	return map[string]any{
		"GetItems": func() (map[string]map[string]dbus.Variant, *dbus.Error) {
			items, err := ItemsToDBus(h.GetItems())
			if err != nil {
				return nil, dbus.MakeFailedError(err)
			}
			return items, nil
		},
		"GetValue": func() (map[string]dbus.Variant, *dbus.Error) {
			values, err := KeyValuesToDBus(h.GetValues())
			if err != nil {
				return nil, dbus.MakeFailedError(err)
			}
			return values, nil
		},
		"SetValues": func(values map[string]dbus.Variant) (int32, *dbus.Error) {
			status, err := h.SetValues(KeyValuesFromDBus(values))
			if err != nil {
				return 0, dbus.MakeFailedError(err)
			}
			return status, nil
		},
	}
}

func itemMethods(h ItemHandler) map[string]any {
	toVariant := func(v variant.Variant) (dbus.Variant, *dbus.Error) {
		dv, err := ToDBusVariant(v)
		if err != nil {
			return dbus.Variant{}, dbus.MakeFailedError(err)
		}
		return dv, nil
	}
	return map[string]any{
		"GetValue": func() (dbus.Variant, *dbus.Error) { return toVariant(h.GetValue()) },
		"GetText":  func() (string, *dbus.Error) { return h.GetText(), nil },
		"SetValue": func(v dbus.Variant) (int32, *dbus.Error) {
			return h.SetValue(FromDBusVariant(v)), nil
		},
		"GetMin": func() (dbus.Variant, *dbus.Error) { return toVariant(h.GetMin()) },
		"GetMax": func() (dbus.Variant, *dbus.Error) { return toVariant(h.GetMax()) },
	}
}

func s2Methods(h S2Handler) map[string]any {
	return map[string]any{
		"Discover": func() (bool, *dbus.Error) { return h.Discover(), nil },
		"Connect": func(cemID string, keepAliveInterval int32) (bool, *dbus.Error) {
			ok, err := h.Connect(cemID, keepAliveInterval)
			if err != nil {
				return false, dbus.MakeFailedError(err)
			}
			return ok, nil
		},
		"Disconnect": func(cemID string) *dbus.Error {
			h.Disconnect(cemID)
			return nil
		},
		"Message": func(cemID, message string) *dbus.Error {
			h.Message(cemID, message)
			return nil
		},
		"KeepAlive": func(cemID string) (bool, *dbus.Error) { return h.KeepAlive(cemID), nil },
	}
}

// registerIntrospection records desc at objPath and makes sure objPath and
// all its ancestors answer Introspect with their current children.
func (c *Conn) registerIntrospection(objPath string, desc InterfaceDesc) error {
	c.mu.Lock()
	c.nodes[objPath] = introspectInterface(desc)
	var pending []string
	for p := objPath; ; p = path.Dir(p) {
		if !c.intro[p] {
			c.intro[p] = true
			pending = append(pending, p)
		}
		if p == "/" {
			break
		}
	}
	c.mu.Unlock()

	for _, p := range pending {
		table := map[string]any{
			"Introspect": func() (string, *dbus.Error) {
				data, err := c.introspect(p)
				if err != nil {
					return "", dbus.MakeFailedError(err)
				}
				return data, nil
			},
		}
		if err := c.conn.ExportMethodTable(table, dbus.ObjectPath(p), "org.freedesktop.DBus.Introspectable"); err != nil {
			return fmt.Errorf("exporting introspection at %s: %w", p, err)
		}
	}
	return nil
}

func (c *Conn) introspect(objPath string) (string, error) {
	c.mu.Lock()
	node := introspect.Node{Name: objPath}
	node.Interfaces = append(node.Interfaces, introspect.IntrospectData)
	if iface, ok := c.nodes[objPath]; ok {
		node.Interfaces = append(node.Interfaces, *iface)
	}
	for _, child := range childNames(objPath, c.intro) {
		node.Children = append(node.Children, introspect.Node{Name: child})
	}
	c.mu.Unlock()

	data, err := xml.MarshalIndent(node, "", "  ")
	if err != nil {
		return "", err
	}
	return introspect.IntrospectDeclarationString + string(data), nil
}

// childNames returns the direct child segments of parent among paths.
func childNames(parent string, paths map[string]bool) []string {
	prefix := parent
	if prefix != "/" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	for p := range paths {
		if p == parent || !strings.HasPrefix(p, prefix) {
			continue
		}
		seg, _, _ := strings.Cut(strings.TrimPrefix(p, prefix), "/")
		seen[seg] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func introspectInterface(desc InterfaceDesc) *introspect.Interface {
	iface := &introspect.Interface{Name: desc.Name}
	for _, m := range desc.Methods {
		im := introspect.Method{Name: m.Name}
		for _, a := range m.In {
			im.Args = append(im.Args, introspect.Arg{Name: a.Name, Type: a.Type, Direction: "in"})
		}
		for _, a := range m.Out {
			im.Args = append(im.Args, introspect.Arg{Name: a.Name, Type: a.Type, Direction: "out"})
		}
		iface.Methods = append(iface.Methods, im)
	}
	for _, s := range desc.Signals {
		is := introspect.Signal{Name: s.Name}
		for _, a := range s.Args {
			is.Args = append(is.Args, introspect.Arg{Name: a.Name, Type: a.Type})
		}
		iface.Signals = append(iface.Signals, is)
	}
	return iface
}

// itemsFromDBus is the inverse of ItemsToDBus. Entries come back in key
// order.
func itemsFromDBus(m map[string]map[string]dbus.Variant) []model.Item {
	keys := sortedKeys(m)
	out := make([]model.Item, 0, len(keys))
	for _, k := range keys {
		entry := m[k]
		it := model.Item{Key: k, Value: variant.Null()}
		if v, ok := entry["Value"]; ok {
			it.Value = FromDBusVariant(v)
		}
		if t, ok := entry["Text"]; ok {
			if s, ok := t.Value().(string); ok {
				it.Text = s
			}
		}
		out = append(out, it)
	}
	return out
}
