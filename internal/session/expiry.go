package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry reads the exp claim of a JWT access token without verifying
// the signature.
func tokenExpiry(accessToken string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}

// loginExpiry computes the lifetime and expiry granted at login.
func loginExpiry(accessToken string, expiresIn int64, now time.Time, maxAge time.Duration) (time.Duration, time.Time) {
	lifetime := time.Duration(expiresIn) * time.Second

	if lifetime <= 0 {
		if exp, ok := tokenExpiry(accessToken); ok && exp.After(now) {
			lifetime = exp.Sub(now)
		}
	}

	if lifetime <= 0 || lifetime > maxAge {
		lifetime = maxAge
	}

	return lifetime, now.Add(lifetime)
}

// refreshExpiry computes the expiry after a successful refresh. It never
// extends past the session ceiling nor past a later JWT exp claim.
func refreshExpiry(tok *Token, now time.Time, maxAge time.Duration) time.Time {
	lifetime := tok.Lifetime
	if lifetime <= 0 {
		lifetime = maxAge
	}

	expiry := now.Add(lifetime)

	if exp, ok := tokenExpiry(tok.AccessToken); ok && exp.After(now) && exp.Before(expiry) {
		expiry = exp
	}

	if ceiling := tok.Ceiling(maxAge); ceiling.Before(expiry) {
		expiry = ceiling
	}

	return expiry
}
