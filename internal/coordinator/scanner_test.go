package coordinator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhirschfeld/apologies-server/internal/engine"
	"github.com/dhirschfeld/apologies-server/internal/protocol"
)

func TestSweepIdlePlayersMarksIdleThenInactive(t *testing.T) {
	c, fake := newTestCoordinator(t)
	_, send := registerPlayerWithChan(t, c, "conn-1", "alice")
	drainAll(send)

	fake.Advance(c.cfg.PlayerIdleThresh())
	c.sweepIdlePlayers()

	b := <-send
	var env protocol.OutEnvelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, protocol.PlayerIdle, env.Message)
	assert.Equal(t, 1, c.store.Counts().Players, "player is idle, not yet removed")

	fake.Advance(c.cfg.PlayerInactiveThresh())
	c.sweepIdlePlayers()

	assert.Equal(t, 0, c.store.Counts().Players, "inactive player is cascaded out")
}

func TestSweepIdleGamesMarksIdleThenCancels(t *testing.T) {
	c, fake := newTestCoordinator(t)
	aliceToken, aliceSend := registerPlayerWithChan(t, c, "conn-alice", "alice")
	drainAll(aliceSend)

	c.handleRequest("conn-alice", envelope(t, protocol.AdvertiseGame, protocol.Authorization(aliceToken), protocol.AdvertiseGameContext{
		Name: "sleepy game", Mode: engine.Standard, Players: 2, Visibility: protocol.Public,
	}))
	var gameID string
	for _, g := range c.store.Games() {
		gameID = g.GameID
	}
	require.NotEmpty(t, gameID)
	drainAll(aliceSend)

	fake.Advance(c.cfg.GameIdleThresh())
	c.sweepIdleGames()

	g, err := c.store.Game(gameID)
	require.NoError(t, err)
	assert.Equal(t, protocol.Idle, g.ActivityState)
	assert.Equal(t, protocol.Advertised, g.State, "idle game is still alive")

	fake.Advance(c.cfg.GameInactiveThresh())
	c.sweepIdleGames()

	g, err = c.store.Game(gameID)
	require.NoError(t, err)
	assert.Equal(t, protocol.Cancelled, g.State)
	assert.Equal(t, protocol.ReasonInactive, g.CompletionReason)
}

func TestSweepObsoleteGamesPurgesAfterRetention(t *testing.T) {
	c, fake := newTestCoordinator(t)
	aliceToken := registerPlayer(t, c, "conn-alice", "alice")

	c.handleRequest("conn-alice", envelope(t, protocol.AdvertiseGame, protocol.Authorization(aliceToken), protocol.AdvertiseGameContext{
		Name: "short game", Mode: engine.Standard, Players: 2, Visibility: protocol.Public,
	}))
	var gameID string
	for _, g := range c.store.Games() {
		gameID = g.GameID
	}
	require.NotEmpty(t, gameID)

	c.handleRequest("conn-alice", envelope(t, protocol.CancelGame, protocol.Authorization(aliceToken), nil))
	g, err := c.store.Game(gameID)
	require.NoError(t, err)
	require.Equal(t, protocol.Cancelled, g.State)
	require.NotNil(t, g.CompletedAt)

	fake.Advance(c.cfg.GameRetentionThresh())
	c.sweepObsoleteGames()

	_, err = c.store.Game(gameID)
	assert.Error(t, err, "retained game should be purged once past the retention threshold")
}

func TestSweepObsoleteGamesLeavesActiveGamesAlone(t *testing.T) {
	c, fake := newTestCoordinator(t)
	aliceToken := registerPlayer(t, c, "conn-alice", "alice")
	registerPlayer(t, c, "conn-bob", "bob")

	c.handleRequest("conn-alice", envelope(t, protocol.AdvertiseGame, protocol.Authorization(aliceToken), protocol.AdvertiseGameContext{
		Name: "still going", Mode: engine.Standard, Players: 2, Visibility: protocol.Public,
	}))
	var gameID string
	for _, g := range c.store.Games() {
		gameID = g.GameID
	}

	fake.Advance(c.cfg.GameRetentionThresh() * 10)
	c.sweepObsoleteGames()

	_, err := c.store.Game(gameID)
	assert.NoError(t, err, "advertised game is never purged by the obsolete sweep")
}

func TestSweepIdleWebsocketsClearsMarkedDeadConnections(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, send := registerPlayerWithChan(t, c, "conn-1", "alice")
	drainAll(send)

	assert.Equal(t, 1, c.store.Counts().Connections)

	// Fill the send buffer so the next dispatch marks the connection dead,
	// mirroring how a slow client gets flagged during normal dispatch.
	for i := 0; i < cap(send)+1; i++ {
		select {
		case send <- []byte("x"):
		default:
		}
	}
	c.dispatch.ToPlayer(mustPlayerID(t, c, "conn-1"), protocol.PlayerIdle, nil)

	c.sweepIdleWebsockets()

	assert.Equal(t, 0, c.store.Counts().Connections)
}

func mustPlayerID(t *testing.T, c *Coordinator, connID string) string {
	t.Helper()
	conn, ok := c.store.Connection(connID)
	require.True(t, ok)
	return conn.PlayerID
}
