package coordinator

import (
	"encoding/json"

	"github.com/dhirschfeld/apologies-server/internal/engine"
	"github.com/dhirschfeld/apologies-server/internal/ids"
	"github.com/dhirschfeld/apologies-server/internal/protocol"
	"github.com/dhirschfeld/apologies-server/internal/store"
)

// handleRequest routes one inbound frame to its handler. Every handler after
// REGISTER_PLAYER requires a valid authorization header (spec.md §6); that
// check happens once, here, rather than being repeated in each handler.
func (c *Coordinator) handleRequest(connectionID string, env protocol.Envelope) {
	if env.Message == protocol.RegisterPlayer {
		c.doRegisterPlayer(connectionID, env)
		return
	}

	playerID, err := ids.VerifyPlayerToken(c.cfg.JWTSecret, authToken(env.Authorization))
	if err != nil {
		c.dispatch.ToConnection(connectionID, protocol.RequestFailed, protocol.RequestFailedContext{
			Reason:  protocol.NotAuthorized,
			Comment: "missing or invalid authorization",
		})
		return
	}

	if env.Message == protocol.ReregisterPlayer {
		c.doReregisterPlayer(connectionID, playerID, env)
		return
	}

	// Every other request requires the connection to still be bound to the
	// player it claims to be (a stale token from a dropped connection that
	// never re-registered should not be able to act).
	if conn, ok := c.store.Connection(connectionID); !ok || conn.PlayerID != playerID {
		c.dispatch.ToConnection(connectionID, protocol.RequestFailed, protocol.RequestFailedContext{
			Reason:  protocol.NotAuthorized,
			Comment: "connection is not bound to this player",
		})
		return
	}

	if err := c.store.MarkActive(playerID); err != nil {
		return
	}

	switch env.Message {
	case protocol.UnregisterPlayer:
		c.doUnregisterPlayer(playerID)
	case protocol.ListPlayers:
		c.doListPlayers(playerID)
	case protocol.AdvertiseGame:
		c.doAdvertiseGame(playerID, env)
	case protocol.ListAvailableGames:
		c.doListAvailableGames(playerID)
	case protocol.JoinGame:
		c.doJoinGame(playerID, env)
	case protocol.QuitGame:
		c.doQuitGame(playerID)
	case protocol.StartGame:
		c.doStartGame(playerID)
	case protocol.CancelGame:
		c.doCancelGame(playerID)
	case protocol.ExecuteMove:
		c.doExecuteMove(playerID, env)
	case protocol.RetrieveGameState:
		c.doRetrieveGameState(playerID)
	case protocol.SendMessage:
		c.doSendMessage(playerID, env)
	default:
		c.failPlayer(playerID, protocol.InvalidRequest, "unrecognized message kind")
	}
}

func authToken(authorization string) string {
	id, err := protocol.PlayerIDFromAuthorization(authorization)
	if err != nil {
		return authorization
	}
	return id
}

func (c *Coordinator) failPlayer(playerID string, reason protocol.FailureReason, comment string) {
	c.dispatch.ToPlayer(playerID, protocol.RequestFailed, protocol.RequestFailedContext{Reason: reason, Comment: comment})
}

func (c *Coordinator) failStoreErr(playerID string, err error) {
	if se, ok := err.(*store.Error); ok {
		c.failPlayer(playerID, se.Reason, se.Message)
		return
	}
	c.failPlayer(playerID, protocol.InternalError, err.Error())
}

// --- REGISTER_PLAYER / REREGISTER_PLAYER / UNREGISTER_PLAYER ---

func (c *Coordinator) doRegisterPlayer(connectionID string, env protocol.Envelope) {
	var ctx protocol.RegisterPlayerContext
	if err := json.Unmarshal(env.Context, &ctx); err != nil || ctx.Handle == "" {
		c.dispatch.ToConnection(connectionID, protocol.RequestFailed, protocol.RequestFailedContext{
			Reason: protocol.InvalidRequest, Comment: "missing handle",
		})
		return
	}
	if c.store.Counts().Players >= c.cfg.RegisteredPlayerLimit {
		c.dispatch.ToConnection(connectionID, protocol.RequestFailed, protocol.RequestFailedContext{Reason: protocol.UserLimit})
		return
	}
	if conn, ok := c.store.Connection(connectionID); ok && conn.PlayerID != "" {
		c.dispatch.ToConnection(connectionID, protocol.RequestFailed, protocol.RequestFailedContext{
			Reason:  protocol.AlreadyConnected,
			Comment: "connection is already registered to a player",
		})
		return
	}

	token, playerID, err := c.mintPlayerToken()
	if err != nil {
		c.dispatch.ToConnection(connectionID, protocol.RequestFailed, protocol.RequestFailedContext{Reason: protocol.InternalError})
		return
	}
	if _, err := c.store.RegisterPlayer(playerID, ctx.Handle, connectionID); err != nil {
		// The new player id was never bound, so the reply goes to the connection.
		failure := protocol.RequestFailedContext{Reason: protocol.InternalError, Comment: err.Error()}
		if se, ok := err.(*store.Error); ok {
			failure = protocol.RequestFailedContext{Reason: se.Reason, Comment: se.Message}
		}
		c.dispatch.ToConnection(connectionID, protocol.RequestFailed, failure)
		return
	}
	c.dispatch.ToConnection(connectionID, protocol.PlayerRegistered, protocol.PlayerRegisteredContext{PlayerID: token})
}

func (c *Coordinator) doReregisterPlayer(connectionID, playerID string, env protocol.Envelope) {
	if err := c.store.BindConnection(connectionID, playerID); err != nil {
		c.failStoreErr(playerID, err)
		return
	}
	_ = c.store.MarkActive(playerID)
	c.dispatch.ToConnection(connectionID, protocol.PlayerRegistered, protocol.PlayerRegisteredContext{PlayerID: authToken(env.Authorization)})
}

func (c *Coordinator) doUnregisterPlayer(playerID string) {
	c.cascadeUnregister(playerID)
}

// --- LIST_PLAYERS / LIST_AVAILABLE_GAMES ---

func (c *Coordinator) doListPlayers(playerID string) {
	players := c.store.Players()
	summaries := make([]protocol.PlayerSummary, 0, len(players))
	for _, p := range players {
		summaries = append(summaries, protocol.PlayerSummary{
			Handle:          p.Handle,
			ConnectionState: p.ConnectionState,
			ActivityState:   p.ActivityState,
			PlayState:       p.PlayState,
		})
	}
	c.dispatch.ToPlayer(playerID, protocol.RegisteredPlayers, protocol.RegisteredPlayersContext{Players: summaries})
}

func (c *Coordinator) doListAvailableGames(playerID string) {
	player, err := c.store.Player(playerID)
	if err != nil {
		return
	}
	var summaries []protocol.GameSummary
	for _, g := range c.store.Games() {
		if g.State != protocol.Advertised {
			continue
		}
		if g.Visibility == protocol.Private && g.AdvertiserID != playerID && !invited(g, player.Handle) {
			continue
		}
		summaries = append(summaries, protocol.GameSummary{
			GameID:     g.GameID,
			Name:       g.Name,
			Mode:       g.Mode,
			Advertiser: mustHandle(c.store, g.AdvertiserID),
			Players:    g.MaxPlayers,
			Available:  g.MaxPlayers - len(g.Seats),
			Visibility: g.Visibility,
		})
	}
	c.dispatch.ToPlayer(playerID, protocol.AvailableGames, protocol.AvailableGamesContext{Games: summaries})
}

func invited(g *store.Game, handle string) bool {
	for _, h := range g.InvitedHandles {
		if h == handle {
			return true
		}
	}
	return false
}

func mustHandle(s *store.Store, playerID string) string {
	p, err := s.Player(playerID)
	if err != nil {
		return ""
	}
	return p.Handle
}

// --- ADVERTISE_GAME / JOIN_GAME / START_GAME / CANCEL_GAME / QUIT_GAME ---

func (c *Coordinator) doAdvertiseGame(playerID string, env protocol.Envelope) {
	var ctx protocol.AdvertiseGameContext
	if err := json.Unmarshal(env.Context, &ctx); err != nil || ctx.Players < 2 || ctx.Players > 4 {
		c.failPlayer(playerID, protocol.InvalidRequest, "invalid ADVERTISE_GAME context")
		return
	}
	counts := c.store.Counts()
	if counts.Games >= c.cfg.TotalGameLimit {
		c.failPlayer(playerID, protocol.TotalGameLimit, "")
		return
	}
	if counts.GamesInPlay >= c.cfg.InProgressGameLimit {
		c.failPlayer(playerID, protocol.InProgressGameLimit, "")
		return
	}
	player, err := c.store.Player(playerID)
	if err != nil {
		return
	}
	if player.GameID != "" {
		c.failPlayer(playerID, protocol.AlreadyPlaying, "")
		return
	}

	gameID := ids.NewGameID()
	g, err := c.store.CreateGame(gameID, playerID, ctx.Name, ctx.Mode, ctx.Players, ctx.Visibility, ctx.InvitedHandles)
	if err != nil {
		c.failStoreErr(playerID, err)
		return
	}
	_ = c.store.SetPlayerGame(playerID, gameID, protocol.Joined)

	c.dispatch.ToPlayer(playerID, protocol.GameAdvertised, protocol.GameAdvertisedContext{
		GameID: g.GameID, Name: g.Name, Mode: g.Mode, Players: g.MaxPlayers, Visibility: g.Visibility,
	})
	if g.Visibility == protocol.Private {
		c.notifyInvited(g)
	}
}

func (c *Coordinator) notifyInvited(g *store.Game) {
	var ids []string
	for _, handle := range g.InvitedHandles {
		p, err := c.store.PlayerByHandle(handle)
		if err != nil {
			continue
		}
		ids = append(ids, p.PlayerID)
	}
	c.dispatch.ToPlayers(ids, protocol.GameInvitation, protocol.GameInvitationContext{
		GameID: g.GameID, Name: g.Name, Mode: g.Mode, AdvertiserHandle: mustHandle(c.store, g.AdvertiserID),
	})
}

func (c *Coordinator) doJoinGame(playerID string, env protocol.Envelope) {
	var ctx protocol.JoinGameContext
	if err := json.Unmarshal(env.Context, &ctx); err != nil || ctx.GameID == "" {
		c.failPlayer(playerID, protocol.InvalidRequest, "missing gameId")
		return
	}
	player, err := c.store.Player(playerID)
	if err != nil {
		return
	}
	if player.GameID != "" {
		c.failPlayer(playerID, protocol.AlreadyPlaying, "")
		return
	}
	g, _, err := c.store.JoinGame(ctx.GameID, playerID)
	if err != nil {
		c.failStoreErr(playerID, err)
		return
	}
	_ = c.store.SetPlayerGame(playerID, g.GameID, protocol.Joined)

	c.dispatch.ToPlayer(playerID, protocol.GameJoined, protocol.GameJoinedContext{GameID: g.GameID})
	c.dispatch.ToGame(g, protocol.GamePlayerChange, protocol.GamePlayerChangeContext{
		Comment: mustHandle(c.store, playerID) + " joined",
		Seats:   seatSummaries(g),
	})

	if len(g.Seats) == g.MaxPlayers {
		c.startGame(g)
	}
}

func seatSummaries(g *store.Game) map[string]protocol.SeatSummary {
	out := make(map[string]protocol.SeatSummary, len(g.Seats))
	for _, seat := range g.Seats {
		color := ""
		if seat.Seat < len(engine.Colors) {
			color = string(engine.Colors[seat.Seat])
		}
		out[color] = protocol.SeatSummary{Handle: seat.Handle, Type: seat.Type, State: seat.State}
	}
	return out
}

func (c *Coordinator) doStartGame(playerID string) {
	player, err := c.store.Player(playerID)
	if err != nil {
		return
	}
	g, err := c.store.Game(player.GameID)
	if err != nil {
		c.failPlayer(playerID, protocol.InvalidGame, "")
		return
	}
	if g.AdvertiserID != playerID {
		c.failPlayer(playerID, protocol.NotAdvertiser, "")
		return
	}
	if g.State != protocol.Advertised {
		c.failPlayer(playerID, protocol.GameAlreadyStarted, "")
		return
	}
	c.startGame(g)
}

// startGame fills any open seats programmatically, asks the engine to set
// up initial state, and runs programmatic turns until a human seat is on
// the clock (spec.md §9's "programmatic turn coalescing" decision).
func (c *Coordinator) startGame(g *store.Game) {
	seats := make([]engine.SeatAssignment, g.MaxPlayers)
	for i := range seats {
		seats[i] = engine.SeatAssignment{Seat: i, Human: i < len(g.Seats)}
	}
	initial, err := c.engine.Start(seats, g.Mode)
	if err != nil {
		c.dispatch.ToGame(g, protocol.RequestFailed, protocol.RequestFailedContext{Reason: protocol.InternalError})
		return
	}
	g, err = c.store.StartGame(g.GameID, initial, "bot")
	if err != nil {
		return
	}

	for _, seat := range g.Seats {
		if seat.Type == protocol.Human && seat.PlayerID != "" {
			_ = c.store.SetPlayerGame(seat.PlayerID, g.GameID, protocol.Playing)
		}
	}

	c.dispatch.ToGame(g, protocol.GameStarted, nil)
	c.runProgrammaticTurns(g)
}

// runProgrammaticTurns plays every programmatic seat's turn (first legal
// move) until a human seat is active or the game ends, then emits a single
// coalesced GAME_STATE_CHANGE per remaining human seat (spec.md §9).
func (c *Coordinator) runProgrammaticTurns(g *store.Game) {
	for {
		if g.EngineState.Winner != nil {
			c.completeGame(g)
			return
		}
		active := g.Seats[g.EngineState.ActiveSeat]
		if active.Type == protocol.Human {
			break
		}
		moves, err := c.engine.LegalMoves(g.EngineState, active.Seat)
		if err != nil || len(moves) == 0 {
			break
		}
		next, _, err := c.engine.Apply(g.EngineState, active.Seat, moves[0].ID)
		if err != nil {
			break
		}
		g, err = c.store.RecordMove(g.GameID, next)
		if err != nil {
			return
		}
	}
	c.broadcastGameState(g)
}

func (c *Coordinator) broadcastGameState(g *store.Game) {
	if g.State == protocol.Completed {
		c.completeGame(g)
		return
	}
	for _, seat := range g.Seats {
		if seat.Type != protocol.Human || seat.PlayerID == "" {
			continue
		}
		view, err := c.engine.PlayerView(g.EngineState, seat.Seat)
		if err != nil {
			continue
		}
		c.dispatch.ToPlayer(seat.PlayerID, protocol.GameStateChange, protocol.GameStateChangeContext{View: view})
		if view.ActiveSeat == seat.Seat {
			c.dispatch.ToPlayer(seat.PlayerID, protocol.GamePlayerTurn, protocol.GamePlayerTurnContext{
				Handle: seat.Handle, LegalMoves: view.LegalMoves,
			})
		}
	}
}

func (c *Coordinator) completeGame(g *store.Game) {
	for _, seat := range g.Seats {
		if seat.Type == protocol.Human && seat.PlayerID != "" {
			_ = c.store.SetPlayerGame(seat.PlayerID, "", protocol.Finished)
		}
	}
	c.dispatch.ToGame(g, protocol.GameCompleted, protocol.GameCompletedContext{Reason: g.CompletionReason})
}

func (c *Coordinator) doCancelGame(playerID string) {
	player, err := c.store.Player(playerID)
	if err != nil {
		return
	}
	g, err := c.store.Game(player.GameID)
	if err != nil {
		c.failPlayer(playerID, protocol.InvalidGame, "")
		return
	}
	if g.AdvertiserID != playerID {
		c.failPlayer(playerID, protocol.NotAdvertiser, "")
		return
	}
	if g.State != protocol.Advertised {
		c.failPlayer(playerID, protocol.GameAlreadyStarted, "")
		return
	}
	c.cancelGame(g, protocol.ReasonCancelled, "cancelled by advertiser")
}

func (c *Coordinator) cancelGame(g *store.Game, reason protocol.CompletionReason, comment string) {
	for _, seat := range g.Seats {
		if seat.Type == protocol.Human && seat.PlayerID != "" {
			_ = c.store.SetPlayerGame(seat.PlayerID, "", protocol.Waiting)
		}
	}
	g, err := c.store.CancelGame(g.GameID, reason)
	if err != nil {
		return
	}
	c.dispatch.ToGame(g, protocol.GameCancelled, protocol.GameCancelledContext{Reason: reason, Comment: comment})
}

func (c *Coordinator) doQuitGame(playerID string) {
	player, err := c.store.Player(playerID)
	if err != nil {
		return
	}
	g, err := c.store.Game(player.GameID)
	if err != nil {
		c.failPlayer(playerID, protocol.InvalidGame, "")
		return
	}
	if g.State == protocol.Advertised {
		c.cancelGame(g, protocol.ReasonCancelled, mustHandle(c.store, playerID)+" quit before the game started")
		return
	}
	c.quitStartedGame(g, playerID, protocol.SeatQuit)
}

// quitStartedGame removes playerID's seat from an in-progress game (spec.md
// §4.4 QUIT_GAME and §4.4/§4.5's disconnect cascade, which flags the seat
// QUIT or DISCONNECTED respectively but otherwise follows the same path).
// If losing the seat drops the game below the viability rule, the game is
// cancelled NOT_VIABLE rather than handed to the engine: the engine's own
// forfeit shortcut treats "one seat left" as a win, which is the wrong
// outcome for a game that ended by attrition rather than by play.
func (c *Coordinator) quitStartedGame(g *store.Game, playerID string, seatState protocol.SeatState) {
	seatNum := g.SeatOf(playerID)
	if seatNum < 0 {
		c.failPlayer(playerID, protocol.InvalidGame, "")
		return
	}
	_ = c.store.SetSeatState(g.GameID, seatNum, seatState)
	_ = c.store.SetPlayerGame(playerID, "", protocol.Waiting)

	c.dispatch.ToGame(g, protocol.GamePlayerChange, protocol.GamePlayerChangeContext{
		Comment: mustHandle(c.store, playerID) + " " + string(seatState),
		Seats:   seatSummaries(g),
	})

	if !g.Viable() {
		c.cancelGame(g, protocol.ReasonNotViable, "too few active players remain")
		return
	}

	next, _, err := c.engine.Forfeit(g.EngineState, seatNum)
	if err != nil {
		return
	}
	g, err = c.store.RecordMove(g.GameID, next)
	if err != nil {
		return
	}
	if g.State == protocol.Completed {
		c.completeGame(g)
		return
	}
	c.runProgrammaticTurns(g)
}

// --- EXECUTE_MOVE / RETRIEVE_GAME_STATE / SEND_MESSAGE ---

func (c *Coordinator) doExecuteMove(playerID string, env protocol.Envelope) {
	var ctx protocol.ExecuteMoveContext
	if err := json.Unmarshal(env.Context, &ctx); err != nil || ctx.MoveID == "" {
		c.failPlayer(playerID, protocol.InvalidRequest, "missing moveId")
		return
	}
	player, err := c.store.Player(playerID)
	if err != nil {
		return
	}
	g, err := c.store.Game(player.GameID)
	if err != nil || g.State != protocol.Started {
		c.failPlayer(playerID, protocol.InvalidGameState, "")
		return
	}
	seatNum := g.SeatOf(playerID)
	if seatNum < 0 {
		c.failPlayer(playerID, protocol.InvalidGame, "")
		return
	}
	if g.EngineState.ActiveSeat != seatNum {
		c.failPlayer(playerID, protocol.NotYourTurn, "")
		return
	}
	legal, err := c.engine.LegalMoves(g.EngineState, seatNum)
	if err != nil || !isLegal(legal, ctx.MoveID) {
		c.failPlayer(playerID, protocol.IllegalMove, "")
		return
	}
	next, _, err := c.engine.Apply(g.EngineState, seatNum, ctx.MoveID)
	if err != nil {
		c.failPlayer(playerID, protocol.IllegalMove, "")
		return
	}
	g, err = c.store.RecordMove(g.GameID, next)
	if err != nil {
		return
	}
	if g.State == protocol.Completed {
		c.completeGame(g)
		return
	}
	c.runProgrammaticTurns(g)
}

func isLegal(moves []engine.Move, moveID string) bool {
	for _, m := range moves {
		if m.ID == moveID {
			return true
		}
	}
	return false
}

// doRetrieveGameState serves spec.md §9's resolved open question: allowed
// for STARTED games the player is seated in, and also for COMPLETED/
// CANCELLED games until they are purged by the obsolete-game sweep.
func (c *Coordinator) doRetrieveGameState(playerID string) {
	player, err := c.store.Player(playerID)
	if err != nil {
		return
	}
	gameID := player.GameID
	if gameID == "" {
		// Finishing a game clears the player's current game, so look for the
		// most recently finished game that still lists them in a seat.
		var latest *store.Game
		for _, fg := range c.store.Games() {
			if (fg.State != protocol.Completed && fg.State != protocol.Cancelled) || fg.CompletedAt == nil || fg.SeatOf(playerID) < 0 {
				continue
			}
			if latest == nil || fg.CompletedAt.After(*latest.CompletedAt) {
				latest = fg
			}
		}
		if latest == nil {
			c.failPlayer(playerID, protocol.InvalidGameState, "not currently in a game")
			return
		}
		gameID = latest.GameID
	}
	g, err := c.store.Game(gameID)
	if err != nil {
		c.failPlayer(playerID, protocol.InvalidGame, "")
		return
	}
	seatNum := g.SeatOf(playerID)
	if seatNum < 0 {
		c.failPlayer(playerID, protocol.InvalidGame, "")
		return
	}
	view, err := c.engine.PlayerView(g.EngineState, seatNum)
	if err != nil {
		return
	}
	c.dispatch.ToPlayer(playerID, protocol.GameStateChange, protocol.GameStateChangeContext{View: view})
}

const maxMessageLen = 1024

func (c *Coordinator) doSendMessage(playerID string, env protocol.Envelope) {
	var ctx protocol.SendMessageContext
	if err := json.Unmarshal(env.Context, &ctx); err != nil || ctx.Message == "" {
		c.failPlayer(playerID, protocol.InvalidRequest, "missing message")
		return
	}
	if len(ctx.Message) > maxMessageLen {
		c.failPlayer(playerID, protocol.MessageTooLarge, "")
		return
	}
	sender, err := c.store.Player(playerID)
	if err != nil {
		return
	}

	var recipientIDs []string
	scope := c.cfg.MessageScope
	if scope == "game-only" {
		if sender.GameID != "" {
			g, err := c.store.Game(sender.GameID)
			if err == nil {
				for _, seat := range g.Seats {
					if seat.Type == protocol.Human && seat.PlayerID != "" {
						recipientIDs = append(recipientIDs, seat.PlayerID)
					}
				}
			}
		}
	} else if len(ctx.RecipientHandles) > 0 {
		for _, h := range ctx.RecipientHandles {
			p, err := c.store.PlayerByHandle(h)
			if err != nil {
				continue
			}
			recipientIDs = append(recipientIDs, p.PlayerID)
		}
	} else {
		for _, p := range c.store.Players() {
			recipientIDs = append(recipientIDs, p.PlayerID)
		}
	}

	c.dispatch.ToPlayers(recipientIDs, protocol.PlayerMessageReceived, protocol.PlayerMessageReceivedContext{
		SenderHandle:     sender.Handle,
		RecipientHandles: ctx.RecipientHandles,
		Message:          ctx.Message,
	})
}
