// Package common contains shared constants and sentinel errors used across
// photomagic components.
package common

// AuthorizationHeaderName carries the bearer credential on API requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the JWT inside the Authorization header.
const BearerPrefix = "Bearer "

// TraceIDHeaderName is echoed on every response so a client can quote it
// when reporting a problem.
const TraceIDHeaderName = "X-Trace-ID"
