// Package auth authenticates mini-app users from the signed launch payload
// (initData) the host messenger hands to the web app, and issues session
// tokens for subsequent calls.
//
// Handshake:
//   - InitDataVerifier parses the payload, rebuilds the data check string
//     and compares its HMAC with the claimed hash in constant time. The key
//     is HMAC-SHA256("WebAppData", botToken).
//   - IdentityResolver reads the user field of a verified payload and
//     inserts the user if absent. Existing rows are never modified.
//   - TokenService signs an HS256 JWT carrying uid and name, valid for
//     seven days by default.
//
// Sessions:
//   - Guard accepts a Bearer token from the Authorization header and falls
//     back to the auth cookie. A missing credential and an invalid one are
//     reported as distinct errors.
//   - HTTPAuthenticator mounts POST /api/auth/telegram and GET /api/me on a
//     fiber router.
//
// Activity sinks:
//   - ActivitySink receives login success and failure events. Sinks run
//     best-effort, errors are logged and never fail a login.
package auth
