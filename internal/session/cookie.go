package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const cookieIssuer = "noteskeeper"

// Codec signs session ids into compact HS256 tokens carried by the session cookie.
type Codec struct {
	key []byte
}

// NewCodec constructs a codec with the given HMAC key.
func NewCodec(key []byte) *Codec { return &Codec{key: key} }

// Encode signs sid with the given expiry.
func (c *Codec) Encode(sid string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sid,
		Issuer:    cookieIssuer,
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

// Decode verifies the token and returns the session id.
func (c *Codec) Decode(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("empty session id")
	}
	return claims.ID, nil
}
