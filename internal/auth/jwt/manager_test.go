package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-development-32-chars-long"

func TestGenerateTokenPair(t *testing.T) {
	manager := NewManager(testSecret, "maktab", 15*time.Minute, 7*24*time.Hour)

	pair, err := manager.GenerateTokenPair("user-1", "أ. محمد", "teacher")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := manager.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "أ. محمد", claims.Name)
	assert.Equal(t, "teacher", claims.Role)
	assert.Equal(t, "maktab", claims.Issuer)
	assert.NotEmpty(t, claims.ID) // jti，供黑名单使用
	assert.Equal(t, pair.AccessJTI, claims.ID)
}

func TestValidateToken(t *testing.T) {
	manager := NewManager(testSecret, "maktab", 15*time.Minute, 7*24*time.Hour)

	t.Run("非法令牌失败", func(t *testing.T) {
		_, err := manager.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("过期令牌失败", func(t *testing.T) {
		shortLived := NewManager(testSecret, "maktab", -time.Minute, time.Hour)
		pair, err := shortLived.GenerateTokenPair("user-1", "name", "student")
		require.NoError(t, err)

		_, err = manager.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("密钥不符失败", func(t *testing.T) {
		other := NewManager("another-secret-key-32-chars-long-minimum", "maktab", 15*time.Minute, time.Hour)
		pair, err := other.GenerateTokenPair("user-1", "name", "student")
		require.NoError(t, err)

		_, err = manager.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	manager := NewManager(testSecret, "maktab", 15*time.Minute, 7*24*time.Hour)

	pair, err := manager.GenerateTokenPair("user-1", "عبدالله", "student")
	require.NoError(t, err)

	newAccess, err := manager.RefreshAccessToken(pair.RefreshToken)
	require.NoError(t, err)

	claims, err := manager.ValidateToken(newAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "student", claims.Role)
}
