package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceqa/pkg/models"
)

func TestTokenRoundTrip(t *testing.T) {
	ts := NewTokenService("test-secret")
	user := &models.User{ID: "user-1", Email: "ann@voiceqa.dev"}

	token, expiresAt, err := ts.CreateAccessToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(ts.AccessTokenDuration), expiresAt, time.Minute)

	claims, err := ts.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ann@voiceqa.dev", claims.Email)
	assert.Equal(t, "voiceqa", claims.Issuer)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a")
	validator := NewTokenService("secret-b")

	token, _, err := issuer.CreateAccessToken(&models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = validator.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	ts := NewTokenService("test-secret")
	ts.AccessTokenDuration = -time.Minute

	token, _, err := ts.CreateAccessToken(&models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = ts.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	ts := NewTokenService("test-secret")

	_, err := ts.ValidateAccessToken("not-a-token")
	assert.Error(t, err)
}
