package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims represents the bearer token presented by signed-in shoppers.
// The cart owner is the token subject.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
}

// UserID returns the subject the token was issued for.
func (c *AccessTokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
