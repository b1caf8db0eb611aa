// Package server holds the HTTP server configuration.
//
// The cmd start command builds the Fiber app from Config: listen address,
// API key, request body limit and graceful shutdown window.
package server
