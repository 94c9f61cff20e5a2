// Package auth guards the measurement receiver and the mutating REST routes
// with a shared API key.
//
// APIKeyInterceptor returns a gRPC UnaryServerInterceptor that reads the key
// from incoming metadata; Middleware does the same for an HTTP header. Both
// pass every call through when mode != "apikey" or no key is configured.
package auth
