package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned for opaque tokens that are not three-segment JWTs.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims are the registered claims read from an unverified JWT.
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasExpiry reports whether the token carried an exp claim.
func (c Claims) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// Expired reports whether the token expired before now minus leeway.
// Tokens without exp never expire.
func (c Claims) Expired(now time.Time, leeway time.Duration) bool {
	if !c.HasExpiry() {
		return false
	}
	return now.Add(-leeway).After(c.ExpiresAt)
}

// ExpiresWithin reports whether the token expires within d of now.
func (c Claims) ExpiresWithin(now time.Time, d time.Duration) bool {
	if !c.HasExpiry() {
		return false
	}
	return !now.Add(d).Before(c.ExpiresAt)
}

// Remaining returns the time left before expiry, zero when expired or when
// the token has no exp.
func (c Claims) Remaining(now time.Time) time.Duration {
	if !c.HasExpiry() || !c.ExpiresAt.After(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// Inspect parses raw without verifying its signature.
func Inspect(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return Claims{}, ErrNotJWT
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	var out Claims
	if sub, err := mc.GetSubject(); err == nil {
		out.Subject = sub
	}
	if iss, err := mc.GetIssuer(); err == nil {
		out.Issuer = iss
	}

	iat, err := mc.GetIssuedAt()
	if err != nil {
		return Claims{}, fmt.Errorf("invalid iat claim: %w", err)
	}
	if iat != nil {
		out.IssuedAt = iat.Time
	}

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}

	return out, nil
}
