// Package auth enforces API key authentication for statuspulse-server.
//
// A Guard is built from the server's auth settings. It exposes a gRPC unary
// and stream interceptor pair for the health service and an HTTP middleware
// for the ingest endpoint. When the mode is not "apikey" or no key is
// configured, every call passes through. A missing or wrong key is rejected
// with codes.Unauthenticated (gRPC) or 401 (HTTP).
package auth
