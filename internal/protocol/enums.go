// Package protocol defines the wire protocol from spec.md §6: JSON request
// and event envelopes, the closed sets of request/event kinds, and their
// per-kind context payloads. Grounded on apologiesserver.interface (the
// original Python enum/attrs definitions), generalized to Go idiom.
package protocol

// Visibility controls whether an advertised game is publicly discoverable.
type Visibility string

const (
	Public  Visibility = "PUBLIC"
	Private Visibility = "PRIVATE"
)

// FailureReason enumerates every REQUEST_FAILED kind from spec.md §7.
type FailureReason string

const (
	InvalidRequest       FailureReason = "INVALID_REQUEST"
	HandleTaken          FailureReason = "HANDLE_TAKEN"
	UserLimit            FailureReason = "USER_LIMIT"
	TotalGameLimit       FailureReason = "TOTAL_GAME_LIMIT"
	InProgressGameLimit  FailureReason = "IN_PROGRESS_GAME_LIMIT"
	AlreadyPlaying       FailureReason = "ALREADY_PLAYING"
	InvalidPlayer        FailureReason = "INVALID_PLAYER"
	InvalidGame          FailureReason = "INVALID_GAME"
	GameAlreadyStarted   FailureReason = "GAME_ALREADY_STARTED"
	NotInvited           FailureReason = "NOT_INVITED"
	NoSeats              FailureReason = "NO_SEATS"
	NotAdvertiser        FailureReason = "NOT_ADVERTISER"
	NotYourTurn          FailureReason = "NOT_YOUR_TURN"
	IllegalMove          FailureReason = "ILLEGAL_MOVE"
	InvalidGameState     FailureReason = "INVALID_GAME_STATE"
	MessageTooLarge      FailureReason = "MESSAGE_TOO_LARGE"
	NotAuthorized        FailureReason = "NOT_AUTHORIZED"
	AlreadyConnected     FailureReason = "ALREADY_CONNECTED"
	InternalError        FailureReason = "INTERNAL_ERROR"
)

// CompletionReason enumerates spec.md §3's game completion
// reason values (WON | CANCELLED | NOT_VIABLE | INACTIVE | SHUTDOWN | null).
type CompletionReason string

const (
	ReasonWon        CompletionReason = "WON"
	ReasonCancelled  CompletionReason = "CANCELLED"
	ReasonNotViable  CompletionReason = "NOT_VIABLE"
	ReasonInactive   CompletionReason = "INACTIVE"
	ReasonShutdown   CompletionReason = "SHUTDOWN"
)

// PlayerType distinguishes a human seat from an engine-controlled one.
type PlayerType string

const (
	Human       PlayerType = "HUMAN"
	Programmatic PlayerType = "PROGRAMMATIC"
)

// SeatState is a seat's per-game state, spec.md §3 "seat table".
type SeatState string

const (
	SeatJoined       SeatState = "JOINED"
	SeatPlaying      SeatState = "PLAYING"
	SeatQuit         SeatState = "QUIT"
	SeatDisconnected SeatState = "DISCONNECTED"
	SeatFinished     SeatState = "FINISHED"
)

// ConnectionState is a player's connection state, spec.md §3.
type ConnectionState string

const (
	Connected    ConnectionState = "CONNECTED"
	Disconnected ConnectionState = "DISCONNECTED"
)

// ActivityState is a player's or game's traffic-derived activity state.
type ActivityState string

const (
	Active   ActivityState = "ACTIVE"
	Idle     ActivityState = "IDLE"
	Inactive ActivityState = "INACTIVE"
)

// PlayState is a player's play state, spec.md §3.
type PlayState string

const (
	Waiting  PlayState = "WAITING"
	Joined   PlayState = "JOINED"
	Playing  PlayState = "PLAYING"
	Finished PlayState = "FINISHED"
)

// GameState is a game's lifecycle state, spec.md §3.
type GameState string

const (
	Advertised GameState = "ADVERTISED"
	Started    GameState = "STARTED"
	Completed  GameState = "COMPLETED"
	Cancelled  GameState = "CANCELLED"
)
