package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeAndValidateJWT(t *testing.T) {
	userID := uuid.New()
	secret := "test-secret"

	token, err := MakeJWT(userID, secret, 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := ValidateJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestValidateJWTExpired(t *testing.T) {
	userID := uuid.New()
	secret := "test-secret"

	token, err := MakeJWT(userID, secret, -1*time.Second)
	require.NoError(t, err)

	_, err = ValidateJWT(token, secret)
	assert.Error(t, err)
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := MakeJWT(uuid.New(), "right-secret", 5*time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "wrong-secret")
	assert.Error(t, err)
}

func TestValidateJWTGarbage(t *testing.T) {
	_, err := ValidateJWT("not.a.token", "test-secret")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotContains(t, hash, "hunter2!")

	ok, err := CheckPasswordHash("hunter2!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPasswordHash("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetUserFromContext(t *testing.T) {
	userID := uuid.New()
	ctx := context.WithValue(context.Background(), UserIDKey, userID)

	got, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = GetUserFromContext(context.Background())
	assert.Error(t, err)
}
