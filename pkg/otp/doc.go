// Package otp issues and verifies one-time codes.
//
// Two kinds of codes live here. Emailed challenges are six-digit codes
// scoped to a purpose (email verification, two-factor login, password
// reset, account recovery), valid for fifteen minutes and burned after
// five wrong guesses. TOTP helpers cover the authenticator-app
// two-factor method, where the code is derived from a shared secret
// instead of stored.
package otp
