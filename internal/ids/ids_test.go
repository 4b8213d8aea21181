package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlayerTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, playerID, err := NewPlayerToken(secret)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := VerifyPlayerToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, playerID, got)
}

func TestVerifyPlayerTokenWrongSecret(t *testing.T) {
	token, _, err := NewPlayerToken([]byte("secret-a"))
	require.NoError(t, err)

	_, err = VerifyPlayerToken([]byte("secret-b"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyPlayerTokenGarbage(t *testing.T) {
	_, err := VerifyPlayerToken([]byte("test-secret"), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewGameIDUnique(t *testing.T) {
	a := NewGameID()
	b := NewGameID()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
