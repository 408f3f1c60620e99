package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on every admin token and required when parsing.
const Issuer = "widgy"

const devSecret = "widgy-dev-secret"

var (
	secret = []byte(devSecret)

	ErrNoEditor = errors.New("token names no editor")
)

// SetSecret configures the signing secret. An empty value keeps the
// development secret.
func SetSecret(s string) {
	if s != "" {
		secret = []byte(s)
	}
}

// Claims identifies the editor calling the admin API.
type Claims struct {
	UserID string `json:"uid"`
	jwtlib.RegisteredClaims
}

// Sign issues an admin token for editor valid for ttl.
func Sign(editor string, ttl time.Duration) (string, error) {
	if editor == "" {
		return "", ErrNoEditor
	}
	now := time.Now()
	claims := Claims{
		UserID: editor,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   editor,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
}

var parser = jwtlib.NewParser(
	jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
	jwtlib.WithIssuer(Issuer),
	jwtlib.WithExpirationRequired(),
)

// Parse verifies raw and returns its claims.
func Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwtlib.Token) (interface{}, error) {
		return secret, nil
	}); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrNoEditor
	}
	return claims, nil
}
