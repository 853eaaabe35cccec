// Package token issues and verifies owner tokens: short JWTs handed to the sender of a
// transfer session so that only they can ask for its outcome.
//
// Claims carry the session ID ("sid") and the invite code ("code"). Tokens are signed
// with HS256 (shared secret) or EdDSA (ed25519 key pair). Parsing pins the algorithm
// to the configured one and rejects any other.
package token
