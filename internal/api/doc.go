// Package api implements the HTTP REST API and WebSocket server for the
// NHC bridge.
//
// This package provides:
//   - REST endpoints for endpoint inventory, stats, and commands
//   - WebSocket hub for real-time state and status broadcasts
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits alongside the bridge and exposes its endpoint
// registry over HTTP. Commands submitted via the API are published to the
// bridge's own MQTT command topics, so they take exactly the same path as
// commands issued by Gray Logic Core. State and status changes observed by
// the bridge are broadcast to WebSocket clients.
//
// # Graceful Degradation
//
// The server operates without MQTT — reads and WebSocket connections work,
// only endpoint commands fail. This enables local testing and partial
// operation.
package api
