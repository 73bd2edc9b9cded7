package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("testbuyer", "buyer@example.com", "secret123")
	require.NoError(t, err)

	assert.Equal(t, ROLE_USER, u.Role)
	assert.Equal(t, STATUS_ACTIVE, u.Status)
	assert.NotEqual(t, "secret123", u.Password)
	assert.True(t, u.CheckPassword("secret123"))
	assert.False(t, u.CheckPassword("wrong"))
}

func TestCreateUserInvalidEmail(t *testing.T) {
	_, err := CreateUser("testbuyer", "not-an-email", "secret123")
	assert.Error(t, err)
}

func TestUserSetPassword(t *testing.T) {
	u, err := CreateUser("testbuyer", "buyer@example.com", "oldpass")
	require.NoError(t, err)

	require.NoError(t, u.SetPassword("newpass"))

	assert.False(t, u.CheckPassword("oldpass"))
	assert.True(t, u.CheckPassword("newpass"))
}

func TestUserIssueAPIKey(t *testing.T) {
	u := &User{ID: 1}

	key, err := u.IssueAPIKey()
	require.NoError(t, err)
	require.NotEmpty(t, key)

	assert.True(t, strings.HasPrefix(key, "bmk_"))
	assert.NotEmpty(t, u.APIKeyHash)
	assert.NotEmpty(t, u.APIKeyPrefix)
	assert.NotNil(t, u.APIKeyCreatedAt)
	assert.Nil(t, u.APIKeyLastUsedAt)
	assert.True(t, u.HasActiveAPIKey())
	assert.Equal(t, HashAPIKey(key), u.APIKeyHash)
}

func TestUserRevokeAPIKey(t *testing.T) {
	u := &User{ID: 99}
	_, err := u.IssueAPIKey()
	require.NoError(t, err)

	u.RevokeAPIKey()

	assert.False(t, u.HasActiveAPIKey())
	assert.Equal(t, "", u.APIKeyHash)
	assert.Equal(t, "", u.APIKeyPrefix)
	assert.Nil(t, u.APIKeyCreatedAt)
}

func TestHashAPIKeyTrimsWhitespace(t *testing.T) {
	assert.Equal(t, HashAPIKey("bmk_abc"), HashAPIKey("  bmk_abc \n"))
}

func TestUserIsProducer(t *testing.T) {
	assert.False(t, (&User{Role: ROLE_USER}).IsProducer())
	assert.True(t, (&User{Role: ROLE_PRODUCER}).IsProducer())
	// Admins can manage their own listings too.
	assert.True(t, (&User{Role: ROLE_ADMIN}).IsProducer())
}

func TestUserIsActive(t *testing.T) {
	assert.True(t, (&User{Status: STATUS_ACTIVE}).IsActive())
	assert.False(t, (&User{Status: STATUS_DISABLED}).IsActive())
}
