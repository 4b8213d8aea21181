package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dhirschfeld/apologies-server/internal/engine"
)

// RequestKind is the closed set of inbound message kinds, spec.md §4.4.
type RequestKind string

const (
	RegisterPlayer     RequestKind = "REGISTER_PLAYER"
	ReregisterPlayer   RequestKind = "REREGISTER_PLAYER"
	UnregisterPlayer   RequestKind = "UNREGISTER_PLAYER"
	ListPlayers        RequestKind = "LIST_PLAYERS"
	AdvertiseGame      RequestKind = "ADVERTISE_GAME"
	ListAvailableGames RequestKind = "LIST_AVAILABLE_GAMES"
	JoinGame           RequestKind = "JOIN_GAME"
	QuitGame           RequestKind = "QUIT_GAME"
	StartGame          RequestKind = "START_GAME"
	CancelGame         RequestKind = "CANCEL_GAME"
	ExecuteMove        RequestKind = "EXECUTE_MOVE"
	RetrieveGameState  RequestKind = "RETRIEVE_GAME_STATE"
	SendMessage        RequestKind = "SEND_MESSAGE"
)

// EventKind is the closed set of outbound message kinds, spec.md §4.4/§9.
type EventKind string

const (
	RequestFailed         EventKind = "REQUEST_FAILED"
	PlayerRegistered      EventKind = "PLAYER_REGISTERED"
	RegisteredPlayers     EventKind = "REGISTERED_PLAYERS"
	PlayerMessageReceived EventKind = "PLAYER_MESSAGE_RECEIVED"
	PlayerIdle            EventKind = "PLAYER_IDLE"
	PlayerInactive        EventKind = "PLAYER_INACTIVE"
	GameAdvertised        EventKind = "GAME_ADVERTISED"
	AvailableGames        EventKind = "AVAILABLE_GAMES"
	GameInvitation        EventKind = "GAME_INVITATION"
	GameJoined            EventKind = "GAME_JOINED"
	GamePlayerChange      EventKind = "GAME_PLAYER_CHANGE"
	GameStarted           EventKind = "GAME_STARTED"
	GameStateChange       EventKind = "GAME_STATE_CHANGE"
	GamePlayerTurn        EventKind = "GAME_PLAYER_TURN"
	GameCompleted         EventKind = "GAME_COMPLETED"
	GameCancelled         EventKind = "GAME_CANCELLED"
	GameIdle              EventKind = "GAME_IDLE"
	GameInactive          EventKind = "GAME_INACTIVE"
	ServerShutdown        EventKind = "SERVER_SHUTDOWN"
)

// Envelope is the inbound frame shape from spec.md §6:
// {"message": <kind>, "authorization": "Player <player-id>", "context": {...}}.
// Authorization is absent on REGISTER_PLAYER and present on everything after.
type Envelope struct {
	Message       RequestKind     `json:"message"`
	Authorization string          `json:"authorization,omitempty"`
	Context       json.RawMessage `json:"context,omitempty"`
}

// OutEnvelope is the outbound frame shape: {"message": <kind>, "context": {...}}.
type OutEnvelope struct {
	Message EventKind   `json:"message"`
	Context interface{} `json:"context,omitempty"`
}

const authPrefix = "Player "

// PlayerIDFromAuthorization extracts the player-id from an "authorization"
// header value of the form "Player <player-id>" (spec.md §6).
func PlayerIDFromAuthorization(auth string) (string, error) {
	if len(auth) <= len(authPrefix) || auth[:len(authPrefix)] != authPrefix {
		return "", fmt.Errorf("protocol: malformed authorization %q", auth)
	}
	return auth[len(authPrefix):], nil
}

// Authorization builds the "authorization" header value for a player-id.
func Authorization(playerID string) string {
	return authPrefix + playerID
}

// --- request contexts ---

type RegisterPlayerContext struct {
	Handle string `json:"handle"`
}

type AdvertiseGameContext struct {
	Name            string       `json:"name"`
	Mode            engine.Mode  `json:"mode"`
	Players         int          `json:"players"`
	Visibility      Visibility   `json:"visibility"`
	InvitedHandles  []string     `json:"invitedHandles,omitempty"`
}

type JoinGameContext struct {
	GameID string `json:"gameId"`
}

type ExecuteMoveContext struct {
	MoveID string `json:"moveId"`
}

type SendMessageContext struct {
	Message          string   `json:"message"`
	RecipientHandles []string `json:"recipientHandles"`
}

// --- event contexts ---

type RequestFailedContext struct {
	Reason  FailureReason `json:"reason"`
	Comment string        `json:"comment,omitempty"`
}

type PlayerSummary struct {
	Handle          string          `json:"handle"`
	ConnectionState ConnectionState `json:"connectionState"`
	ActivityState   ActivityState   `json:"activityState"`
	PlayState       PlayState       `json:"playState"`
}

type PlayerRegisteredContext struct {
	PlayerID string `json:"playerId"`
}

type RegisteredPlayersContext struct {
	Players []PlayerSummary `json:"players"`
}

type GameSummary struct {
	GameID     string     `json:"gameId"`
	Name       string     `json:"name"`
	Mode       engine.Mode `json:"mode"`
	Advertiser string     `json:"advertiserHandle"`
	Players    int        `json:"players"`
	Available  int        `json:"available"`
	Visibility Visibility `json:"visibility"`
}

type AvailableGamesContext struct {
	Games []GameSummary `json:"games"`
}

type GameAdvertisedContext struct {
	GameID     string     `json:"gameId"`
	Name       string     `json:"name"`
	Mode       engine.Mode `json:"mode"`
	Players    int        `json:"players"`
	Visibility Visibility `json:"visibility"`
}

type GameInvitationContext struct {
	GameID           string     `json:"gameId"`
	Name             string     `json:"name"`
	Mode             engine.Mode `json:"mode"`
	AdvertiserHandle string     `json:"advertiserHandle"`
}

type GameJoinedContext struct {
	GameID string `json:"gameId"`
}

type SeatSummary struct {
	Handle string     `json:"handle,omitempty"`
	Type   PlayerType `json:"type"`
	State  SeatState  `json:"state"`
}

type GamePlayerChangeContext struct {
	Comment string                 `json:"comment,omitempty"`
	Seats   map[string]SeatSummary `json:"seats"`
}

type GameStateChangeContext struct {
	View engine.PlayerView `json:"view"`
}

type GamePlayerTurnContext struct {
	Handle     string        `json:"handle"`
	LegalMoves []engine.Move `json:"legalMoves"`
}

type GameCompletedContext struct {
	Reason  CompletionReason `json:"reason"`
	Comment string           `json:"comment,omitempty"`
}

type GameCancelledContext struct {
	Reason  CompletionReason `json:"reason"`
	Comment string           `json:"comment,omitempty"`
}

type PlayerMessageReceivedContext struct {
	SenderHandle     string   `json:"senderHandle"`
	RecipientHandles []string `json:"recipientHandles"`
	Message          string   `json:"message"`
}
