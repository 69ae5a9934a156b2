// Package account holds the identity records the authentication
// subsystem operates on: credentials, verification and activity flags,
// and the embedded security state (failed-attempt counter, lock,
// trusted devices, two-factor configuration).
//
// The Store interface is the single credential-store collaborator used
// by the rest of the service. Two implementations are provided: a
// PostgreSQL store for production and an in-memory store for tests and
// the demo binary. Security-state mutations that race under concurrent
// logins, most importantly the failed-attempt increment, are atomic at
// the store level rather than in the callers.
package account
