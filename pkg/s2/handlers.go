package s2

import "fmt"

// Handlers are the application callbacks of a session. All four are
// required.
type Handlers struct {
	// Connect is called when a CEM is admitted.
	Connect func(cemID string, keepAliveInterval int32)

	// Disconnect is called when the connected CEM disconnects or its
	// keepalive expires.
	Disconnect func(cemID string)

	// Message is called with each message from the connected CEM.
	Message func(cemID, message string)

	// KeepAlive is called on each accepted keepalive.
	KeepAlive func(cemID string)
}

// Validate returns ErrMissingHandler naming the first missing handler.
func (h Handlers) Validate() error {
	switch {
	case h.Connect == nil:
		return fmt.Errorf("%w: S2 support enabled, but no Connect handler provided", ErrMissingHandler)
	case h.Disconnect == nil:
		return fmt.Errorf("%w: S2 support enabled, but no Disconnect handler provided", ErrMissingHandler)
	case h.Message == nil:
		return fmt.Errorf("%w: S2 support enabled, but no Message handler provided", ErrMissingHandler)
	case h.KeepAlive == nil:
		return fmt.Errorf("%w: S2 support enabled, but no KeepAlive handler provided", ErrMissingHandler)
	}
	return nil
}
