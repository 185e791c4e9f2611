// Package server manages the HTTP server lifecycle: non-blocking
// start, graceful shutdown, and SIGINT/SIGTERM handling.
//
// Manager wraps net/http.Server. Start and StartTLS bind the listener
// synchronously and serve in the background; WaitForShutdown blocks
// until a termination signal or a fatal serve error and then drains
// in-flight requests within the configured timeout. Asynchronous serve
// errors are exposed through Errors.
package server
