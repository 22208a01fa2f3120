// Package steamguard derives a Steam Guard login code from an operator
// supplied auth secret, using the vetted third-party TOTP implementation
// rather than a hand-rolled HMAC.
package steamguard

import (
	"time"

	"github.com/pquerna/otp/totp"
)

// directCodeMaxLen is the length heuristic from §4.3: an authSecret this
// short or shorter is treated as an already-generated one-time code rather
// than a TOTP seed.
const directCodeMaxLen = 5

// ResolveCode returns the login code to send for a given authSecret. If
// authSecret is short (<= 5 characters) it is assumed to already be a
// one-time code and is returned unchanged. Otherwise it is treated as a
// base32 TOTP seed and a fresh 6-digit code is derived from it.
func ResolveCode(authSecret string) (string, error) {
	if authSecret == "" {
		return "", nil
	}
	if len(authSecret) <= directCodeMaxLen {
		return authSecret, nil
	}
	return GenerateCode(authSecret, time.Now())
}

// GenerateCode derives the 6-digit TOTP code for seed at instant t.
func GenerateCode(seed string, t time.Time) (string, error) {
	return totp.GenerateCode(seed, t)
}

// IsTOTPSeed reports whether authSecret should be treated as a TOTP seed
// (as opposed to a direct one-time code), per the length heuristic.
func IsTOTPSeed(authSecret string) bool {
	return len(authSecret) > directCodeMaxLen
}
