// Package sessions manages signed-in devices. A session is keyed by
// the SHA-256 digest of its refresh secret; the secret is handed out
// once at login and never stored. Access tokens are minted per session
// and renewed against the refresh secret without rotating it.
package sessions
