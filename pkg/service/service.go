package service

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/Chris927/dbus-victron-virtual/pkg/clock"
	"github.com/Chris927/dbus-victron-virtual/pkg/log"
	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/s2"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
	"github.com/Chris927/dbus-victron-virtual/pkg/variant"
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

// Service is a virtual service exported on the bus.
type Service struct {
	name     string
	registry *model.Registry
	root     transport.Emitter
	session  *s2.Session
	s2Path   string
	warnings []string

	connID         string
	clock          clock.Clock
	logger         *slog.Logger
	protocolLogger log.Logger
}

// New validates the declaration, optionally injects the default
// properties, and exports the object tree on bus: the root object, the S2
// object if enabled, then one object per property in declaration order.
//
// The caller requests the bus name after New returns, so peers never see
// a half-exported tree.
func New(bus transport.Exporter, decl *model.ServiceDeclaration, values map[string]any, cfg Config) (*Service, error) {
	if decl == nil || decl.Name == "" {
		return nil, ErrNameRequired
	}

	s := &Service{
		name:           decl.Name,
		connID:         uuid.New().String(),
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		protocolLogger: cfg.ProtocolLogger,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	s.checkName()

	if decl.S2 != nil {
		session, err := s2.NewSession(cfg.S2Handlers, nil,
			s2.WithClock(s.clock),
			s2.WithLogger(s.logger),
			s2.WithStateObserver(s.logSessionChange))
		if err != nil {
			return nil, err
		}
		s.session = session
		s.s2Path = decl.S2.ObjectPath()
	}

	s.registry = model.NewRegistry(decl, values, model.WithLogger(s.logger))
	if cfg.AddDefaults {
		s.addDefaults(cfg)
	}

	root, err := bus.Export("/", transport.RootInterface, rootObject{s})
	if err != nil {
		return nil, fmt.Errorf("exporting root object: %w", err)
	}
	s.root = root
	s.registry.SetNotifier(s.emitItemsChanged)

	if s.session != nil {
		emitter, err := bus.Export(s.s2Path, transport.S2Interface, s2Object{s})
		if err != nil {
			return nil, fmt.Errorf("exporting S2 object at %s: %w", s.s2Path, err)
		}
		s.session.SetEmitter(&loggingEmitter{svc: s, path: s.s2Path, iface: s2.InterfaceName, next: emitter})
	}

	for _, name := range s.registry.Names() {
		path := model.Slash(name)
		if _, err := bus.Export(path, transport.ItemInterface, itemObject{svc: s, name: name}); err != nil {
			return nil, fmt.Errorf("exporting %s: %w", path, err)
		}
	}

	s.debugLog("service exported", "name", s.name, "properties", len(s.registry.Names()), "s2", s.session != nil)
	s.logState("", "EXPORTED", "")
	return s, nil
}

// Name returns the bus name of the service.
func (s *Service) Name() string { return s.name }

// ConnectionID returns the id used to correlate protocol log events.
func (s *Service) ConnectionID() string { return s.connID }

// Warnings returns the non-fatal problems found at setup.
func (s *Service) Warnings() []string {
	return slices.Clone(s.warnings)
}

// S2 returns the S2 session, or nil if S2 is not enabled.
func (s *Service) S2() *s2.Session { return s.session }

// Registry returns the property registry backing the object tree.
func (s *Service) Registry() *model.Registry { return s.registry }

// Value returns the current value of a property. The name may carry a
// leading "/".
func (s *Service) Value(name string) (any, bool) {
	return s.registry.Value(model.Unslash(name))
}

// SetValuesLocally validates and stores new values from the embedding
// application, then emits one ItemsChanged for exactly the written keys.
// Keys may carry a leading "/". Unknown and read-only properties are
// rejected. Nothing is stored unless every value is valid.
func (s *Service) SetValuesLocally(values map[string]any) error {
	if len(values) == 0 {
		return ErrNoValues
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	validated := make(map[string]any, len(values))
	for _, key := range keys {
		name := model.Unslash(key)
		d, ok := s.registry.Declaration(name)
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrUnknownProperty, name)
		}
		if d.ReadOnly {
			return fmt.Errorf("%w: %s", model.ErrReadOnly, name)
		}
		v, err := s.registry.Validate(name, values[key])
		if err != nil {
			return err
		}
		validated[name] = v
	}

	s.registry.Commit(validated)
	return nil
}

// EmitItemsChanged emits ItemsChanged with every property.
func (s *Service) EmitItemsChanged() {
	s.registry.Notify(nil)
}

// Close stops the S2 keepalive timer. Exported objects stay on the bus
// until the connection is closed.
func (s *Service) Close() {
	if s.session != nil {
		s.session.Close()
	}
	s.logState("EXPORTED", "CLOSED", "")
}

func (s *Service) checkName() {
	if !validName.MatchString(s.name) {
		s.warn("Interface name contains problematic characters, only a-zA-Z0-9_ allowed.")
	}
	if !strings.HasPrefix(s.name, "com.victronenergy") {
		s.warn("Interface name should start with com.victronenergy")
	}
}

// addDefaults declares the Mgmt/*, ProductId and ProductName properties.
// The product is the third dot-separated segment of the service name.
func (s *Service) addDefaults(cfg Config) {
	segments := strings.Split(s.name, ".")
	if len(segments) < 3 || segments[2] == "" {
		s.warn(fmt.Sprintf("Unable to extract product from name, ensure name is of the form 'com.victronenergy.product.my_name', name=%s", s.name))
		return
	}
	product := segments[2]
	id, ok := cfg.Products[product]
	if !ok {
		names := make([]string, 0, len(cfg.Products))
		for n := range cfg.Products {
			names = append(names, n)
		}
		slices.Sort(names)
		s.warn(fmt.Sprintf("Invalid product %s, ensure product name is in %s", product, strings.Join(names, ", ")))
		return
	}

	tag := cfg.ConnectionTag
	if tag == "" {
		tag = DefaultConnectionTag
	}
	str := model.Declaration{Type: variant.TypeString}

	s.registry.Declare(model.Property{Name: "Mgmt/Connection", Declaration: str}, tag)
	s.registry.Declare(model.Property{Name: "Mgmt/ProcessName", Declaration: str}, cfg.ProcessName)
	s.registry.Declare(model.Property{Name: "Mgmt/ProcessVersion", Declaration: str}, cfg.ProcessVersion)
	s.registry.Declare(model.Property{
		Name:        "ProductId",
		Declaration: model.Declaration{Type: variant.TypeInt, Format: model.HexFormat},
	}, id)
	s.registry.Declare(model.Property{Name: "ProductName", Declaration: str}, "Virtual "+product)
}

// warn records a setup warning.
func (s *Service) warn(msg string) {
	s.warnings = append(s.warnings, msg)
	if s.logger != nil {
		s.logger.Warn(msg, "service", s.name)
	}
}

func (s *Service) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
