// Package jwt issues and validates HS256 access tokens over ordered claim sets,
// and mints the opaque refresh value handed out alongside every access token.
//
// Validation always checks signature, algorithm, issuer, audience and the
// presence of exp. The time window [nbf, exp], widened by a clock skew that
// defaults to five minutes, is checked unless the caller asks to ignore expiry,
// which only the refresh path does.
package jwt
