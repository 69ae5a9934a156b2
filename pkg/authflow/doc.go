// Package authflow is the authentication orchestrator. A login request
// runs through an ordered pipeline of steps:
//
//	credential_check -> lock_check -> password_check ->
//	twofactor_check -> suspicion_check -> session_issue
//
// Each step can pass the request along, terminate the flow with a
// structured error, or return early with a non-error outcome such as a
// pending two-factor challenge. Steps are registered with an order
// value, so flows can be rebuilt with steps added, removed or replaced
// without touching the executor.
//
// The orchestrator itself holds no mutable state. Everything lives in
// the injected collaborators (credential store, challenge service,
// session service, attempt ledger), so concurrent logins coordinate
// through the stores' atomic operations, not in-process locks.
//
// Besides Login, the Service exposes the rest of the authentication
// API: registration, email verification, 2FA completion and
// enrollment, token refresh, logout, password reset and change, and
// session and trusted-device management. Entry points that finish an
// authentication (Verify2FA, VerifyEmail, Register) re-enter the
// pipeline at session issue.
package authflow
