package service

import (
	"time"

	"github.com/Chris927/dbus-victron-virtual/pkg/log"
	"github.com/Chris927/dbus-victron-virtual/pkg/model"
	"github.com/Chris927/dbus-victron-virtual/pkg/s2"
	"github.com/Chris927/dbus-victron-virtual/pkg/transport"
)

// emitItemsChanged is the registry notifier. It forwards committed
// changes to the root object's ItemsChanged signal.
func (s *Service) emitItemsChanged(signal string, items []model.Item) {
	if err := s.root.Emit(signal, items); err != nil {
		s.warnf("emitting signal failed", "signal", signal, "error", err)
		s.logError("/", signal, err, nil)
		return
	}
	s.logSignal("/", transport.BusItemInterface, signal, items)
}

// loggingEmitter records S2 signals in the protocol log.
type loggingEmitter struct {
	svc   *Service
	path  string
	iface string
	next  transport.Emitter
}

func (e *loggingEmitter) Emit(signal string, args ...any) error {
	if err := e.next.Emit(signal, args...); err != nil {
		e.svc.logError(e.path, signal, err, nil)
		return err
	}
	e.svc.logSignal(e.path, e.iface, signal, args)
	return nil
}

func (s *Service) event(dir log.Direction, layer log.Layer, cat log.Category, path string) log.Event {
	return log.Event{
		Timestamp:    s.clock.Now(),
		ConnectionID: s.connID,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		Service:      s.name,
		Path:         path,
	}
}

func (s *Service) layerFor(path string) (log.Layer, string) {
	if s.session != nil && path == s.s2Path {
		return log.LayerSession, s2.InterfaceName
	}
	return log.LayerService, transport.BusItemInterface
}

// logCall records an inbound method call. A zero start omits the duration.
func (s *Service) logCall(path, member string, args any, status *int32, start time.Time) {
	if s.protocolLogger == nil {
		return
	}
	layer, iface := s.layerFor(path)
	e := s.event(log.DirectionIn, layer, log.CategoryCall, path)
	e.Call = &log.CallEvent{
		Interface: iface,
		Member:    member,
		Args:      args,
		Status:    status,
	}
	if !start.IsZero() {
		d := s.clock.Now().Sub(start)
		e.Call.Duration = &d
	}
	s.protocolLogger.Log(e)
}

func (s *Service) logSignal(path, iface, member string, args any) {
	if s.protocolLogger == nil {
		return
	}
	layer, _ := s.layerFor(path)
	e := s.event(log.DirectionOut, layer, log.CategorySignal, path)
	e.Signal = &log.SignalEvent{Interface: iface, Member: member, Args: args}
	s.protocolLogger.Log(e)
}

func (s *Service) logError(path, context string, err error, status *int32) {
	if s.protocolLogger == nil {
		return
	}
	layer, _ := s.layerFor(path)
	e := s.event(log.DirectionIn, layer, log.CategoryError, path)
	e.Error = &log.ErrorEventData{Layer: layer, Message: err.Error(), Context: context}
	if status != nil {
		code := int(*status)
		e.Error.Code = &code
	}
	s.protocolLogger.Log(e)
}

func (s *Service) logState(from, to, reason string) {
	if s.protocolLogger == nil {
		return
	}
	e := s.event(log.DirectionOut, log.LayerService, log.CategoryState, "/")
	e.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntityService,
		OldState: from,
		NewState: to,
		Reason:   reason,
	}
	s.protocolLogger.Log(e)
}

// logSessionChange is the S2 state observer.
func (s *Service) logSessionChange(c s2.StateChange) {
	s.debugLog("S2 session state changed", "from", c.From, "to", c.To, "cem", c.CEMID, "reason", c.Reason)
	if s.protocolLogger == nil {
		return
	}
	e := s.event(log.DirectionOut, log.LayerSession, log.CategoryState, s.s2Path)
	e.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntityS2,
		OldState: c.From.String(),
		NewState: c.To.String(),
		Reason:   c.Reason,
		CEMID:    c.CEMID,
	}
	s.protocolLogger.Log(e)
}
