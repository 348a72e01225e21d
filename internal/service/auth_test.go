package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRegisterAndLogin(t *testing.T) {
	conn := newTestDB(t)
	auth := NewAuth(conn, newTestLogger(t))

	token, err := auth.Register("chef@example.com", "chef", "Jamie", "Oliver", "longenoughpass")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	user, err := auth.UserByToken(token)
	require.NoError(t, err)
	assert.Equal(t, "chef@example.com", user.Email)
	assert.Equal(t, "chef", user.Username)
	assert.NotEqual(t, "longenoughpass", user.Password)

	newToken, err := auth.Login("chef@example.com", "longenoughpass")
	require.NoError(t, err)
	assert.NotEmpty(t, newToken)
	assert.NotEqual(t, token, newToken)

	// The old token no longer resolves.
	_, err = auth.UserByToken(token)
	assert.Equal(t, ErrUserNotFound, err)
}

func TestAuthLoginFailures(t *testing.T) {
	conn := newTestDB(t)
	auth := NewAuth(conn, newTestLogger(t))

	_, err := auth.Login("ghost@example.com", "whatever")
	assert.Equal(t, ErrLoginUserNotFound, err)

	_, err = auth.Register("chef@example.com", "chef", "", "", "longenoughpass")
	require.NoError(t, err)

	_, err = auth.Login("chef@example.com", "wrongpassword")
	assert.Equal(t, ErrLoginPasswordDoesNotMatch, err)
}
