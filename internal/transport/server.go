// Package transport is the websocket front door: accepting connections,
// running each connection's read/write pumps, and handing inbound frames
// to the coordinator's mailbox. Grounded on the teacher's
// ws.Hub.ServeWS (nhooyr.io/websocket Accept + a writer goroutine with a
// ping ticker + a blocking reader loop), generalized from a single global
// hub to per-connection registration against the coordinator, and from
// net/http's ServeMux to chi for the health/readiness routes.
package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/dhirschfeld/apologies-server/internal/coordinator"
)

const (
	pingInterval  = 15 * time.Second
	sendBufferLen = 64
	maxFrameBytes = 1 << 16
)

// Server wires an http.Handler around a Coordinator.
type Server struct {
	coord  *coordinator.Coordinator
	router chi.Router
}

// New builds a Server. allowedOrigins may be empty to accept any origin
// (fine for local development; production deployments should set it).
func New(coord *coordinator.Coordinator, allowedOrigins []string) *Server {
	s := &Server{coord: coord}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/ws", s.handleWS(allowedOrigins))

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleWS(allowedOrigins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := &websocket.AcceptOptions{}
		if len(allowedOrigins) > 0 {
			opts.OriginPatterns = allowedOrigins
		} else {
			opts.InsecureSkipVerify = true
		}
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Warn().Err(err).Msg("transport: websocket accept failed")
			return
		}
		conn.SetReadLimit(maxFrameBytes)

		connectionID := randConnectionID()
		send := make(chan []byte, sendBufferLen)
		if !s.coord.Connect(connectionID, send) {
			log.Warn().Str("connectionId", connectionID).Msg("transport: websocket rejected, at capacity")
			_ = conn.Close(websocket.StatusTryAgainLater, "server at capacity")
			return
		}

		log.Info().Str("connectionId", connectionID).Msg("transport: connection accepted")

		ctx, cancel := context.WithCancel(r.Context())
		go s.writePump(ctx, cancel, conn, connectionID, send)
		s.readPump(ctx, cancel, conn, connectionID)
	}
}

// writePump owns the connection's write side: it forwards queued frames
// and sends periodic pings, mirroring the teacher's writer goroutine.
func (s *Server) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, connectionID string, send <-chan []byte) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-send:
			if !ok {
				return
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			writeCancel()
			if err != nil {
				cancel()
				return
			}
		case <-ping.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				cancel()
				return
			}
		}
	}
}

// readPump owns the connection's read side, handing each frame to the
// coordinator's mailbox until the socket closes or the write side fails.
func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, connectionID string) {
	defer cancel()
	defer s.coord.SubmitConnectionClosed(connectionID)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Debug().Str("connectionId", connectionID).Err(err).Msg("transport: read loop ending")
			return
		}
		if !s.coord.SubmitRequest(connectionID, data) {
			return
		}
	}
}

func randConnectionID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
