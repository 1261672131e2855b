package s2

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Chris927/dbus-victron-virtual/pkg/clock"
)

// Interface and signal names.
const (
	InterfaceName = "com.victronenergy.S2"

	SignalMessage    = "Message"
	SignalDisconnect = "Disconnect"
)

// Disconnect reasons sent with the Disconnect signal.
const (
	ReasonKeepAliveMissed = "keepalive missed"
	ReasonNotConnected    = "not connected"
)

// KeepAliveFactor is the grace applied to the keepalive interval before a
// silent CEM is dropped.
const KeepAliveFactor = 1.2

// Session errors.
var (
	ErrMissingHandler   = errors.New("missing S2 handler")
	ErrInvalidCEMID     = errors.New("invalid cemId provided to S2 Connect")
	ErrInvalidKeepAlive = errors.New("invalid keepAliveInterval provided to S2 Connect")
	ErrUnknownSignal    = errors.New("unknown S2 signal")
)

// State is the session state.
type State uint8

const (
	// StateIdle means no CEM is connected.
	StateIdle State = iota

	// StateConnected means a CEM holds the session.
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// StateChange describes a session transition.
type StateChange struct {
	From   State
	To     State
	CEMID  string
	Reason string
}

// Transition reasons reported to the state observer.
const (
	ChangeConnect    = "connect"
	ChangeDisconnect = "disconnect"
	ChangeExpired    = ReasonKeepAliveMissed
)

// Emitter sends signals on the S2 object.
type Emitter interface {
	Emit(signal string, args ...any) error
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for the keepalive timer.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithStateObserver registers a callback for every state transition. It is
// called without the session lock held.
func WithStateObserver(fn func(StateChange)) Option {
	return func(s *Session) { s.observer = fn }
}

// Session is a single-client S2 session.
type Session struct {
	// opMu serializes transitions together with their handler calls, so
	// handlers observe Connect, KeepAlive, Message and Disconnect in the
	// order the state changed. Handlers must not call back into these
	// methods; reading state and EmitSignal are fine.
	opMu sync.Mutex

	mu sync.Mutex

	handlers Handlers
	emitter  Emitter
	clock    clock.Clock
	logger   *slog.Logger
	observer func(StateChange)

	cemID    string
	interval int32
	lastSeen time.Time

	// generation invalidates timers that were superseded before they fired.
	timer      *clock.Timer
	generation uint64
}

// NewSession creates an idle session. The emitter may be nil and bound
// later with SetEmitter, once the S2 object is exported.
func NewSession(h Handlers, emitter Emitter, opts ...Option) (*Session, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		handlers: h,
		emitter:  emitter,
		clock:    clock.Real(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetEmitter binds the signal emitter.
func (s *Session) SetEmitter(e Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitter = e
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cemID == "" {
		return StateIdle
	}
	return StateConnected
}

// ConnectedCEM returns the connected CEM id, or "" when idle.
func (s *Session) ConnectedCEM() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cemID
}

// KeepAliveInterval returns the interval requested by the connected CEM.
func (s *Session) KeepAliveInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.interval) * time.Second
}

// LastSeen returns when the connected CEM last connected or kept alive.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Discover always succeeds.
func (s *Session) Discover() bool {
	return true
}

// Connect admits cemID if the session is idle, or refreshes the keepalive
// interval if cemID already holds it. Another CEM is rejected with false.
func (s *Session) Connect(cemID string, keepAliveInterval int32) (bool, error) {
	if cemID == "" {
		return false, ErrInvalidCEMID
	}
	if keepAliveInterval <= 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidKeepAlive, keepAliveInterval)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	switch s.cemID {
	case "":
		s.cemID = cemID
		s.interval = keepAliveInterval
		s.lastSeen = s.clock.Now()
		s.armLocked()
		s.mu.Unlock()

		s.debug("S2 connect", "cemId", cemID, "keepAliveInterval", keepAliveInterval)
		s.observe(StateChange{From: StateIdle, To: StateConnected, CEMID: cemID, Reason: ChangeConnect})
		s.handlers.Connect(cemID, keepAliveInterval)
		return true, nil

	case cemID:
		s.interval = keepAliveInterval
		s.lastSeen = s.clock.Now()
		s.armLocked()
		s.mu.Unlock()

		s.debug("S2 reconnect", "cemId", cemID, "keepAliveInterval", keepAliveInterval)
		return true, nil

	default:
		current := s.cemID
		s.mu.Unlock()

		s.warn("S2 connect rejected, another CEM is connected", "cemId", cemID, "connected", current)
		return false, nil
	}
}

// KeepAlive re-arms the timer for the connected CEM. Any other caller gets
// a Disconnect signal with reason "not connected".
func (s *Session) KeepAlive(cemID string) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if cemID == "" || cemID != s.cemID {
		s.mu.Unlock()
		s.rejectNotConnected(cemID, "KeepAlive")
		return false
	}
	s.lastSeen = s.clock.Now()
	s.armLocked()
	s.mu.Unlock()

	s.handlers.KeepAlive(cemID)
	return true
}

// Disconnect ends the session of the connected CEM. Other ids are ignored.
func (s *Session) Disconnect(cemID string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if cemID == "" || cemID != s.cemID {
		current := s.cemID
		s.mu.Unlock()
		s.warn("S2 disconnect ignored, CEM not connected", "cemId", cemID, "connected", current)
		return
	}
	s.resetLocked()
	s.mu.Unlock()

	s.debug("S2 disconnect", "cemId", cemID)
	s.observe(StateChange{From: StateConnected, To: StateIdle, CEMID: cemID, Reason: ChangeDisconnect})
	s.handlers.Disconnect(cemID)
}

// Message forwards a message from the connected CEM to the Message handler.
// Any other caller gets a Disconnect signal with reason "not connected".
func (s *Session) Message(cemID, message string) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	connected := cemID != "" && cemID == s.cemID
	s.mu.Unlock()

	if !connected {
		s.rejectNotConnected(cemID, "Message")
		return
	}
	s.handlers.Message(cemID, message)
}

// EmitSignal sends a Message or Disconnect signal to a CEM. An empty cemID
// addresses the connected CEM. While idle, nothing is sent.
func (s *Session) EmitSignal(name, cemID, payload string) error {
	if name != SignalMessage && name != SignalDisconnect {
		return fmt.Errorf("%w: %q", ErrUnknownSignal, name)
	}

	s.mu.Lock()
	current := s.cemID
	s.mu.Unlock()

	if current == "" {
		s.warn("S2 signal not sent, no CEM connected", "signal", name)
		return nil
	}
	if cemID == "" {
		cemID = current
	}
	return s.emit(name, cemID, payload)
}

// Close stops the keepalive timer without notifying anyone.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// armLocked replaces any pending keepalive timer.
func (s *Session) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	gen := s.generation
	timeout := time.Duration(float64(s.interval) * KeepAliveFactor * float64(time.Second))
	s.timer = s.clock.AfterFunc(timeout, func() { s.expire(gen) })
}

func (s *Session) resetLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.cemID = ""
	s.interval = 0
}

// expire runs on the timer goroutine.
func (s *Session) expire(gen uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if gen != s.generation || s.cemID == "" {
		s.mu.Unlock()
		return
	}
	cemID := s.cemID
	s.timer = nil
	s.resetLocked()
	s.mu.Unlock()

	s.warn("S2 keepalive missed", "cemId", cemID)
	if err := s.emit(SignalDisconnect, cemID, ReasonKeepAliveMissed); err != nil {
		s.warn("S2 disconnect signal failed", "cemId", cemID, "error", err)
	}
	s.observe(StateChange{From: StateConnected, To: StateIdle, CEMID: cemID, Reason: ChangeExpired})
	s.handlers.Disconnect(cemID)
}

func (s *Session) rejectNotConnected(cemID, call string) {
	s.debug("S2 call from unconnected CEM", "call", call, "cemId", cemID)
	if err := s.emit(SignalDisconnect, cemID, ReasonNotConnected); err != nil {
		s.warn("S2 disconnect signal failed", "cemId", cemID, "error", err)
	}
}

func (s *Session) emit(signal string, args ...any) error {
	s.mu.Lock()
	e := s.emitter
	s.mu.Unlock()

	if e == nil {
		return fmt.Errorf("s2: no emitter bound for %s", signal)
	}
	return e.Emit(signal, args...)
}

func (s *Session) observe(c StateChange) {
	if s.observer != nil {
		s.observer(c)
	}
}

func (s *Session) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Session) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
