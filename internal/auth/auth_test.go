package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soomhub/market/internal/utils"
)

const testSecret = "test-secret"

func TestGenerateAndValidateJWT(t *testing.T) {
	userID := utils.NewSixID()
	token, exp, err := GenerateJWT(userID, true, TokenAccess, testSecret, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := ValidateJWT(token, testSecret, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.True(t, claims.IsAdmin)
	assert.NotEmpty(t, claims.ID)

	parsed, err := claims.ParsedUserID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestValidateJWT_Rejects(t *testing.T) {
	userID := utils.NewSixID()

	refresh, _, err := GenerateJWT(userID, false, TokenRefresh, testSecret, time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(refresh, testSecret, TokenAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = ValidateJWT(refresh, "other-secret", TokenRefresh)
	assert.Error(t, err)

	expired, _, err := GenerateJWT(userID, false, TokenAccess, testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(expired, testSecret, TokenAccess)
	assert.Error(t, err)

	_, err = ValidateJWT("not.a.token", testSecret, TokenAccess)
	assert.Error(t, err)
}

func TestGenerateTokenPair_UniqueIDs(t *testing.T) {
	pair, err := GenerateTokenPair(utils.NewSixID(), false, testSecret, time.Minute, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.RefreshExpiresAt.After(pair.ExpiresAt))

	access, err := ValidateJWT(pair.AccessToken, testSecret, TokenAccess)
	require.NoError(t, err)
	refresh, err := ValidateJWT(pair.RefreshToken, testSecret, TokenRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, access.ID, refresh.ID)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("wrong horse", hash))

	policy, err := NewPasswordPolicy("^.{8,}$")
	require.NoError(t, err)
	assert.NoError(t, policy.Check("12345678"))
	assert.ErrorIs(t, policy.Check("short"), ErrWeakPassword)

	_, err = NewPasswordPolicy("(")
	assert.Error(t, err)
}
