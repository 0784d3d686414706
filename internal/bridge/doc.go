// Package bridge implements the Niko Home Control bridge for Gray Logic.
//
// This package translates between Gray Logic's MQTT bus and a Niko Home
// Control controller session. One ActionHandler per configured endpoint
// links an MQTT endpoint to a controller action.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   Gray Logic    │   MQTT   │   NHC Bridge    │   TCP/JSON
//	│      Core       │◄────────►│   (this pkg)    │◄──────────► Controller
//	└─────────────────┘          └─────────────────┘
//
// # Key Responsibilities
//
//   - Subscribe to MQTT command and request topics
//   - Translate typed commands to controller protocol primitives
//   - Project controller raw states onto typed channel values
//   - Publish retained state, status, and health messages
//   - Recover the controller session opportunistically on command and
//     in the background after connection loss
//
// # Channels
//
// Each endpoint maps onto one channel derived from its controller action
// kind: button (momentary trigger), switch (relay), brightness (dimmer),
// or rollershutter (shutter motor). Triggers and relays are distinct
// channels; a trigger event never updates the switch channel.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Command work runs on the bridge worker pool, never on the controller
// read loop.
package bridge
