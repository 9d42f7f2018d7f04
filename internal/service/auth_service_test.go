package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateToken(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)
	userID := uuid.New()

	token, err := auth.IssueToken(userID, RoleStudent)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RoleStudent, claims.Role)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	token, err := NewAuthService("one", time.Hour).IssueToken(uuid.New(), RoleAdmin)
	require.NoError(t, err)

	_, err = NewAuthService("two", time.Hour).ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	auth := NewAuthService("test-secret", -time.Minute)
	token, err := auth.IssueToken(uuid.New(), RoleStudent)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	require.Error(t, err)
}

func TestIssueTokenUnknownRole(t *testing.T) {
	_, err := NewAuthService("s", time.Hour).IssueToken(uuid.New(), Role("proctor"))
	require.Error(t, err)
}
