// Package tlsutil centralizes TLS settings for the HTTP server and all
// outbound provider clients: TLS 1.2 minimum, AEAD cipher suites only.
package tlsutil
