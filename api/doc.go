// Package api defines the wire types of the SupportFlow HTTP API:
// ask requests, answer payloads, and the event frames emitted on the
// SSE and WebSocket streaming surfaces.
//
// Most endpoints require authentication via the X-API-Key header or a
// JWT bearer token, depending on server configuration.
package api
