package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	token, err := Sign("editor", time.Minute)
	require.NoError(t, err)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "editor", claims.UserID)
	assert.Equal(t, Issuer, claims.Issuer)

	_, err = Sign("", time.Minute)
	assert.ErrorIs(t, err, ErrNoEditor)
}

func TestParseRejects(t *testing.T) {
	expired, err := Sign("editor", -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired)
	assert.ErrorIs(t, err, jwtlib.ErrTokenExpired)

	foreign, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{
		UserID: "editor",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString(secret)
	require.NoError(t, err)
	_, err = Parse(foreign)
	assert.ErrorIs(t, err, jwtlib.ErrTokenInvalidIssuer)

	forever, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{
		UserID:           "editor",
		RegisteredClaims: jwtlib.RegisteredClaims{Issuer: Issuer},
	}).SignedString(secret)
	require.NoError(t, err)
	_, err = Parse(forever)
	assert.ErrorIs(t, err, jwtlib.ErrTokenRequiredClaimMissing)

	_, err = Parse("not-a-token")
	assert.Error(t, err)
}
