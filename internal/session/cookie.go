package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const cookieIssuer = "tunemirror"

// CookieCodec signs session ids into HS256 JWTs and verifies them on the way back.
type CookieCodec struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewCookieCodec(secret string, lifetime time.Duration) *CookieCodec {
	return &CookieCodec{secret: []byte(secret), lifetime: lifetime, now: time.Now}
}

// Encode returns a signed token whose subject is sessionID.
func (c *CookieCodec) Encode(sessionID string) (string, error) {
	now := c.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    cookieIssuer,
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

// Decode verifies token and returns the session id it carries.
func (c *CookieCodec) Decode(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("invalid session cookie: missing subject")
	}
	return claims.Subject, nil
}

// Lifetime returns the validity window of issued cookies.
func (c *CookieCodec) Lifetime() time.Duration {
	return c.lifetime
}
