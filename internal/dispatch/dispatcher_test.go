package dispatch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhirschfeld/apologies-server/internal/clock"
	"github.com/dhirschfeld/apologies-server/internal/engine"
	"github.com/dhirschfeld/apologies-server/internal/protocol"
	"github.com/dhirschfeld/apologies-server/internal/store"
)

func setup(t *testing.T) (*store.Store, *Dispatcher) {
	t.Helper()
	s := store.New(clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	return s, New(s)
}

func TestToPlayerDeliversEnvelope(t *testing.T) {
	s, d := setup(t)
	send := make(chan []byte, 1)
	s.AddConnection("conn-1", send)
	p, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)

	d.ToPlayer(p.PlayerID, protocol.PlayerRegistered, protocol.PlayerRegisteredContext{PlayerID: p.PlayerID})

	select {
	case b := <-send:
		var env protocol.OutEnvelope
		require.NoError(t, json.Unmarshal(b, &env))
		assert.Equal(t, protocol.PlayerRegistered, env.Message)
	default:
		t.Fatal("expected a message on the send channel")
	}
}

func TestSendToFullBufferMarksDead(t *testing.T) {
	s, d := setup(t)
	send := make(chan []byte) // unbuffered: any send without a reader blocks, so default fires
	s.AddConnection("conn-1", send)
	p, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)

	d.ToPlayer(p.PlayerID, protocol.PlayerRegistered, protocol.PlayerRegisteredContext{PlayerID: p.PlayerID})

	dead := d.DrainDead()
	require.Len(t, dead, 1)
	assert.Equal(t, "conn-1", dead[0])
}

func TestToGameOnlyReachesHumanSeats(t *testing.T) {
	s, d := setup(t)
	send := make(chan []byte, 1)
	s.AddConnection("conn-1", send)
	advertiser, err := s.RegisterPlayer("player-1", "alice", "conn-1")
	require.NoError(t, err)

	g, err := s.CreateGame("game-1", advertiser.PlayerID, "alice's game", engine.Standard, 2, protocol.Public, nil)
	require.NoError(t, err)
	g, err = s.StartGame(g.GameID, engine.State{}, "bot")
	require.NoError(t, err)

	d.ToGame(g, protocol.GameStarted, nil)

	select {
	case <-send:
	default:
		t.Fatal("expected advertiser to receive the event")
	}
}

func TestDrainDeadClearsAfterRead(t *testing.T) {
	_, d := setup(t)
	d.dead = []string{"a", "b"}
	first := d.DrainDead()
	assert.Len(t, first, 2)
	assert.Empty(t, d.DrainDead())
}
