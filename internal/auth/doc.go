// Package auth issues and validates operator access tokens.
//
// Tokens are HMAC-signed JWTs carrying the operator's login and role. They
// are validated by signature and expiry only; there is no server-side
// session table, so a restart does not log operators out.
package auth
