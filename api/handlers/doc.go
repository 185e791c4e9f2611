// Package handlers implements the HTTP endpoints of the SupportFlow
// API: question answering (synchronous, SSE, and WebSocket), health
// probes, and the shared response envelope with error-code to HTTP
// status mapping.
package handlers
