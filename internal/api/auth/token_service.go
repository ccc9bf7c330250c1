package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/voiceqa/pkg/models"
)

// TokenService issues and validates the stateless HMAC access tokens the
// comment API authenticates with.
type TokenService struct {
	secretKey []byte

	// AccessTokenDuration defaults to 12 hours: long enough for a working
	// session in the test-management UI, short enough that revocation by
	// secret rotation is tolerable.
	AccessTokenDuration time.Duration
}

// JWTClaims represents the claims in our access tokens
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(secretKey string) *TokenService {
	return &TokenService{
		secretKey:           []byte(secretKey),
		AccessTokenDuration: 12 * time.Hour,
	}
}

// CreateAccessToken issues a signed token for the given user.
func (ts *TokenService) CreateAccessToken(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(ts.AccessTokenDuration)

	claims := &JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "voiceqa",
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken parses and verifies a token, returning its claims.
func (ts *TokenService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
