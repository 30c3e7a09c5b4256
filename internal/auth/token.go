package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StationClaims authorizes a listener to operate on a single station.
type StationClaims struct {
	StationID string `json:"stationId"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies per-station listener tokens.
type TokenManager struct {
	secret     []byte
	expiration time.Duration
}

func NewTokenManager(secret string, expiration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), expiration: expiration}
}

// Mint creates a signed token scoped to the given station.
func (m *TokenManager) Mint(stationID string) (string, error) {
	now := time.Now()
	claims := StationClaims{
		StationID: stationID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign station token: %w", err)
	}
	return signed, nil
}

// Verify parses the token and returns the station id it was minted for.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	claims := &StationClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid station token: %w", err)
	}
	if !token.Valid || claims.StationID == "" {
		return "", fmt.Errorf("invalid station token")
	}
	return claims.StationID, nil
}
