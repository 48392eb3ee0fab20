package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("secret"), Issuer: "lms"})
	token, err := m.Generate(User{ID: "u-1", DisplayName: "Teacher", Role: RoleInstructor})
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "lms", claims.Issuer)
	assert.True(t, claims.CanManageQuizzes())
}

func TestManager_Rejects(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("secret")})
	other := NewManager(TokenConfig{Secret: []byte("other")})
	token, err := other.Generate(User{ID: "u-1", Role: RoleAdmin})
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewManager(TokenConfig{Secret: []byte("secret"), TTL: -time.Minute})
	token, err = expired.Generate(User{ID: "u-1", Role: RoleAdmin})
	require.NoError(t, err)
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestClaims_Roles(t *testing.T) {
	assert.True(t, (&Claims{Role: RoleAdmin}).CanManageQuizzes())
	assert.False(t, (&Claims{Role: RoleStudent}).CanManageQuizzes())
}
