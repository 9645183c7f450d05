// Package server implements the GoChat realtime router: the HTTP surface,
// WebSocket client pumps, the hub that owns every connection, and the
// dispatch loop that authenticates sessions and routes direct messages,
// group messages, presence and call signaling between them.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, the session registry, routing, and HTTP handlers.
package server
