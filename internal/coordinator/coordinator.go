// Package coordinator is the single-threaded Coordinator Loop from spec.md
// §4/§9: one goroutine drains a mailbox of inbound requests, connection-
// closed notices, and periodic sweep ticks, and is the sole caller of every
// store-mutating method. No mutex guards the store; serialization comes
// entirely from "only the mailbox goroutine touches it", the same
// invariant apologiesserver.manager.StateManager enforced with a single
// asyncio.Lock and apologiesserver.state enforced with per-object
// asyncio.Lock fields. Grounded structurally on the teacher's Hub.Run
// (a single goroutine ranging over one channel) generalized from a
// fan-out broadcaster to a full state machine.
package coordinator

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dhirschfeld/apologies-server/internal/clock"
	"github.com/dhirschfeld/apologies-server/internal/config"
	"github.com/dhirschfeld/apologies-server/internal/dispatch"
	"github.com/dhirschfeld/apologies-server/internal/engine"
	"github.com/dhirschfeld/apologies-server/internal/ids"
	"github.com/dhirschfeld/apologies-server/internal/protocol"
	"github.com/dhirschfeld/apologies-server/internal/store"
)

// sweepKind names which periodic sweeper fired a tick mailbox item.
type sweepKind int

const (
	sweepIdleWebsocket sweepKind = iota
	sweepIdlePlayer
	sweepIdleGame
	sweepObsoleteGame
)

// mailboxItem is the closed set of things that can arrive in the
// coordinator's mailbox: an inbound request frame, a connection closing,
// or a periodic sweep tick.
type mailboxItem struct {
	kind sweepKindOrRequest

	// request fields
	connectionID string
	envelope     protocol.Envelope

	// connectionClosed fields reuse connectionID above

	// tick fields
	sweep sweepKind
}

type sweepKindOrRequest int

const (
	itemRequest sweepKindOrRequest = iota
	itemConnectionClosed
	itemTick
	itemShutdown
)

// Coordinator owns the store, dispatcher, and engine adapter, and runs the
// single mailbox goroutine that mutates them.
type Coordinator struct {
	cfg       config.Config
	clk       clock.Clock
	store     *store.Store
	dispatch  *dispatch.Dispatcher
	engine    engine.Adapter
	mailbox   chan mailboxItem
	done      chan struct{}
	closeOnce chan struct{}
}

// New builds a Coordinator. Call Run in its own goroutine to start
// processing the mailbox.
func New(cfg config.Config, clk clock.Clock) *Coordinator {
	s := store.New(clk)
	return &Coordinator{
		cfg:      cfg,
		clk:      clk,
		store:    s,
		dispatch: dispatch.New(s),
		engine:   engine.NewLuaAdapter(),
		mailbox:  make(chan mailboxItem, 256),
		done:     make(chan struct{}),
	}
}

// Connect registers a new websocket connection with the store, enforcing
// spec.md §5/§6's websocket_limit before the connection is tracked at all.
// Returns false if the server is already at capacity, in which case the
// transport layer must close the socket without handing it a connection id.
func (c *Coordinator) Connect(connectionID string, send chan<- []byte) bool {
	if c.store.ConnectionCount() >= c.cfg.WebsocketLimit {
		return false
	}
	c.store.AddConnection(connectionID, send)
	return true
}

// SubmitRequest enqueues an inbound frame for processing on the mailbox
// goroutine, blocking while the mailbox is full. Returns false if the
// coordinator has stopped.
func (c *Coordinator) SubmitRequest(connectionID string, raw []byte) bool {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.dispatch.ToConnection(connectionID, protocol.RequestFailed, protocol.RequestFailedContext{
			Reason:  protocol.InvalidRequest,
			Comment: "malformed request frame",
		})
		return true
	}
	select {
	case c.mailbox <- mailboxItem{kind: itemRequest, connectionID: connectionID, envelope: env}:
		return true
	case <-c.done:
		return false
	}
}

// SubmitConnectionClosed notifies the coordinator that a websocket went away.
func (c *Coordinator) SubmitConnectionClosed(connectionID string) {
	select {
	case c.mailbox <- mailboxItem{kind: itemConnectionClosed, connectionID: connectionID}:
	case <-c.done:
	}
}

// Run drains the mailbox until ctx is cancelled, then runs the shutdown
// sequence.
// This is the coordinator loop: every case in the switch below is the only
// code in the whole program allowed to mutate c.store.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)

	tickers := c.startSweepers(ctx)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.runShutdown()
			return
		case item := <-c.mailbox:
			c.handle(item)
		}
	}
}

func (c *Coordinator) handle(item mailboxItem) {
	start := c.clk.Now()
	switch item.kind {
	case itemRequest:
		c.handleRequest(item.connectionID, item.envelope)
	case itemConnectionClosed:
		c.handleConnectionClosed(item.connectionID)
	case itemTick:
		c.handleSweep(item.sweep)
	}
	for _, deadConn := range c.dispatch.DrainDead() {
		c.handleConnectionClosed(deadConn)
	}
	if elapsed := c.clk.Now().Sub(start); elapsed > 0 {
		log.Debug().Dur("elapsed", elapsed).Msg("coordinator: processed mailbox item")
	}
}

func (c *Coordinator) mintPlayerToken() (token, playerID string, err error) {
	return ids.NewPlayerToken(c.cfg.JWTSecret)
}
