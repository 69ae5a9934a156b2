// Package errs provides structured error handling for the authentication
// service.
//
// Every failure a caller can recover from carries a typed Code, a
// human-readable message and optional details (attempts left, lock
// duration, field errors). Codes map to HTTP status codes through
// MapCodeToHTTPStatus so the transport layer never interprets messages.
//
// Enumeration-sensitive failures (unknown email, wrong password) share
// the single InvalidCredentials constructor so they are indistinguishable
// on the wire.
package errs
