// Package loginattempt keeps the audit ledger of login attempts and
// derives the suspicious-login signal from it.
package loginattempt
