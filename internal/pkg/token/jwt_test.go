package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goimovel/internal/pkg/token"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := token.NewService("segredo", time.Hour)

	raw, err := svc.GenerateToken("user-1", "seller")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "seller", claims.Role)
	assert.Equal(t, token.Issuer, claims.Issuer)
}

func TestValidate_WrongSecret(t *testing.T) {
	raw, err := token.NewService("a", time.Hour).GenerateToken("u", "admin")
	require.NoError(t, err)

	_, err = token.NewService("b", time.Hour).ValidateToken(raw)
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	raw, err := token.NewService("s", -time.Minute).GenerateToken("u", "buyer")
	require.NoError(t, err)

	_, err = token.NewService("s", time.Hour).ValidateToken(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, token.CustomClaims{UserID: "u", Role: "admin"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = token.NewService("s", time.Hour).ValidateToken(raw)
	assert.Error(t, err)
}
