// Package middleware holds net/http middleware for the identityauth Engine.
//
// [RequireRoles] and [Guard] check the bearer access token and put the
// resulting [identityauth.AuthResult] on the request context. [ClientIP]
// records the peer address for the Engine's throttle and audit trail.
package middleware
