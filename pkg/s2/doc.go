// Package s2 implements the resource manager side of the S2 session on
// the com.victronenergy.S2 interface.
//
// A Session admits at most one CEM (customer energy manager) at a time:
//
//	Idle --Connect(id, interval)--> Connected(id)
//	Connected(id) --Disconnect(id)--> Idle
//	Connected(id) --no KeepAlive within interval*1.2s--> Idle
//
// While connected, the CEM must call KeepAlive before the keepalive timer
// expires. On expiry the session emits Disconnect(id, "keepalive missed")
// and returns to Idle. Calls from any other id are answered with
// Disconnect(id, "not connected").
//
// The keepalive timer runs on an injected clock.Clock so tests can drive
// it with clock.FakeClock.
package s2
