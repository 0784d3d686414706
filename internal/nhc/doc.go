// Package nhc implements the Niko Home Control controller session.
//
// The controller speaks newline-delimited JSON over a plain TCP socket.
// Connect dials the controller, performs the handshake (systeminfo,
// listlocations, listactions, startevents), and then serves action state
// events from a read loop.
//
// # Actions
//
// Every controllable output on the controller is an Action: a relay, a
// dimmer, a shutter motor, or a momentary trigger. Actions are owned by
// the Client; callers look them up by id, register an ActionEventHandler
// for state notifications, and send protocol primitives with Execute.
//
// # Primitives
//
// The wire command vocabulary is a closed set: PrimitiveOn, PrimitiveOff,
// PrimitiveUp, PrimitiveDown, PrimitiveStop, plus numeric primitives "0"
// through "100" produced with NumericPrimitive. Primitives are opaque
// strings everywhere above the wire codec.
//
// # Session Recovery
//
// Restart tears the session down and re-establishes it, re-listing
// actions and diffing the result against the known set. Restart is
// single-flight: concurrent callers wait for the in-flight attempt. Its
// outcome is observed through Active.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Event callbacks are delivered from a bounded worker pool so a slow
// handler cannot stall the read loop.
package nhc
