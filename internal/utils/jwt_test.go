package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateJWT("user-1", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "", 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, RoleInvestor, claims.Role)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", claims.WalletAddress)
}

func TestValidateJWTRejects(t *testing.T) {
	SetJWTSecret("test-secret")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateJWT("user-1", "", RoleAdmin, 1)
		require.NoError(t, err)

		SetJWTSecret("other-secret")
		defer SetJWTSecret("test-secret")
		_, err = ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		claims := JWTClaims{
			UserID: "user-1",
			Role:   RoleInvestor,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("subject mismatch", func(t *testing.T) {
		claims := JWTClaims{
			UserID:           "user-1",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = ValidateJWT(token)
		assert.Error(t, err)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := GenerateJWT("", "", RoleInvestor, 1)
		assert.Error(t, err)
	})
}
