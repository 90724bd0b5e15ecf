package auctionapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// TokenExpiry reads the exp claim of an access token without verifying its
// signature. A token without exp yields the zero time.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, errors.Wrap(err, "parse access token")
	}
	expiresAt, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Wrap(err, "read token expiry")
	}
	if expiresAt == nil {
		return time.Time{}, nil
	}
	return expiresAt.Time, nil
}

// TokenExpired reports whether the token carries an exp claim at or before now.
// Tokens that cannot be decoded are left to the server to reject.
func TokenExpired(token string, now time.Time) bool {
	expiresAt, err := TokenExpiry(token)
	if err != nil || expiresAt.IsZero() {
		return false
	}
	return !expiresAt.After(now)
}
