// internal/utils/jwt.go
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleInvestor = "investor"
	RoleAdmin    = "admin"
)

type JWTClaims struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

var (
	jwtSecret = []byte("your-secret-key-change-in-production")
	jwtIssuer = "property-ledger"
)

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

func SetJWTIssuer(issuer string) {
	if issuer != "" {
		jwtIssuer = issuer
	}
}

func GenerateJWT(userID, walletAddress, role string, ttlHours int) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if role == "" {
		role = RoleInvestor
	}

	now := time.Now()
	claims := JWTClaims{
		UserID:        userID,
		WalletAddress: walletAddress,
		Role:          role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		if claims.UserID == "" || claims.UserID != claims.Subject {
			return nil, errors.New("token subject mismatch")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
