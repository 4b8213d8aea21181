package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	ctx := RegisterPlayerContext{Handle: "alice"}
	ctxBytes, err := json.Marshal(ctx)
	require.NoError(t, err)

	env := Envelope{Message: RegisterPlayer, Context: ctxBytes}
	b, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, RegisterPlayer, decoded.Message)

	var decodedCtx RegisterPlayerContext
	require.NoError(t, json.Unmarshal(decoded.Context, &decodedCtx))
	assert.Equal(t, "alice", decodedCtx.Handle)
}

func TestAuthorizationRoundTrip(t *testing.T) {
	header := Authorization("player-123")
	assert.Equal(t, "Player player-123", header)

	id, err := PlayerIDFromAuthorization(header)
	require.NoError(t, err)
	assert.Equal(t, "player-123", id)
}

func TestPlayerIDFromAuthorizationRejectsMalformed(t *testing.T) {
	_, err := PlayerIDFromAuthorization("Bearer nope")
	assert.Error(t, err)

	_, err = PlayerIDFromAuthorization("")
	assert.Error(t, err)
}

func TestOutEnvelopeOmitsEmptyContext(t *testing.T) {
	b, err := json.Marshal(OutEnvelope{Message: GameStarted})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"GAME_STARTED"}`, string(b))
}
