// Package jwtclaims reads the expiry claim of an access token without verifying its signature.
// Tokens are issued by a trusted external authority; only "exp" is inspected.
package jwtclaims

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLeeway is subtracted from a token's expiry when deciding whether it is still usable.
const DefaultLeeway = 30 * time.Second

var parser = jwt.NewParser()

// ExpiresAt returns the token's "exp" claim as unix seconds. ok is false when the token is
// malformed or carries no usable expiry; decoding failures are never reported as errors.
func ExpiresAt(token string) (exp int64, ok bool) {
	if token == "" {
		return 0, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return 0, false
	}

	switch v := claims["exp"].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		exp = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		exp = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		exp = n
	default:
		return 0, false
	}

	if exp <= 0 {
		return 0, false
	}
	return exp, true
}

// IsExpired reports whether token must be refreshed at now: true when exp <= now+leeway,
// and also when no expiry can be decoded.
func IsExpired(token string, leeway time.Duration, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return true
	}
	return !now.Add(leeway).Before(time.Unix(exp, 0))
}

// RenewalDelay returns how long to wait before proactively renewing token,
// max(0, exp - now - leeway). ok is false when no expiry can be decoded.
func RenewalDelay(token string, leeway time.Duration, now time.Time) (time.Duration, bool) {
	exp, ok := ExpiresAt(token)
	if !ok {
		return 0, false
	}
	d := time.Unix(exp, 0).Sub(now) - leeway
	if d < 0 {
		d = 0
	}
	return d, true
}
