// Package server exposes the HTTP API and the live WebSocket endpoint.
// Every request is attributed to an identity resolved from the caller's
// session token; handlers return domain errors and let the error middleware
// map them to HTTP responses.
package server
