// Package transport serves driftroom's WebSocket endpoint: it upgrades
// HTTP connections with gobwas/ws, resolves the room named in the URL
// path through a roomdir.Directory, and pumps frames between the socket
// and a room.Connection over a split read loop and write loop.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jamsocket-labs/driftroom/internal/metrics"
	"github.com/jamsocket-labs/driftroom/internal/room"
	"github.com/jamsocket-labs/driftroom/internal/roomdir"
)

// Config controls per-connection limits. The rate limiter rejects with an
// Error message rather than disconnecting: dropping a misbehaving client
// is a transport policy choice, not part of the room's protocol.
type Config struct {
	Addr             string
	OutboxSize       int
	RateLimitPerSec  float64
	RateLimitBurst   int
	HandshakeTimeout time.Duration
}

// Server serves the driftroom WebSocket endpoint at "/room/{id}/connect".
type Server struct {
	cfg     Config
	dir     *roomdir.Directory
	metrics *metrics.Registry
	log     zerolog.Logger

	httpServer *http.Server
	wg         sync.WaitGroup
}

// New builds a Server. Call Start to begin listening.
func New(cfg Config, dir *roomdir.Directory, metricsRegistry *metrics.Registry, log zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		dir:     dir,
		metrics: metricsRegistry,
		log:     log.With().Str("component", "transport").Logger(),
	}
}

// Start begins serving in a background goroutine and returns once the
// listener is bound.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/room/", s.handleConnect)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: s.cfg.HandshakeTimeout,
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.log.Info().Str("addr", s.cfg.Addr).Msg("transport listening")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http serve error")
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP server down and waits for it to return.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// roomIDAndMode parses "/room/{id}/connect" out of an HTTP request path.
func roomIDAndMode(path string) (roomID string, ok bool) {
	const prefix = "/room/"
	const suffix = "/connect"
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if id == "" {
		return "", false
	}
	return id, true
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDAndMode(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	debug := r.URL.Query().Get("debug") == "1" || r.URL.Query().Get("debug") == "true"

	db, err := s.dir.Get(r.Context(), roomID)
	if err != nil {
		s.log.Error().Err(err).Str("room", roomID).Msg("open room")
		http.Error(w, "could not open room", http.StatusInternalServerError)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
	}
	s.serveConnection(conn, db, roomID, debug)
	if s.metrics != nil {
		s.metrics.ActiveConnections.Dec()
	}
}

func (s *Server) serveConnection(conn io.ReadWriteCloser, db *room.Database, roomID string, debug bool) {
	defer conn.Close()

	outbox := make(chan room.OutboundMessage, s.cfg.OutboxSize)
	var closeOnce sync.Once
	closeOutbox := func() { closeOnce.Do(func() { close(outbox) }) }
	defer closeOutbox()

	callback := func(msg room.OutboundMessage) {
		select {
		case outbox <- msg:
		default:
			if s.metrics != nil {
				s.metrics.OutboxDropped.Inc()
			}
			s.log.Warn().Str("room", roomID).Msg("outbox full, dropping message")
		}
	}

	var roomConn *room.Connection
	if debug {
		roomConn = db.ConnectDebug(callback)
	} else {
		roomConn = db.Connect(callback)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(conn, outbox)
	}()

	s.readLoop(conn, roomConn, roomID)
	closeOutbox()
	<-done
}

func (s *Server) writeLoop(conn io.Writer, outbox <-chan room.OutboundMessage) {
	for msg := range outbox {
		payload, err := json.Marshal(msg)
		if err != nil {
			s.log.Error().Err(err).Msg("marshal outbound message")
			continue
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpText, payload); err != nil {
			s.log.Debug().Err(err).Msg("write message error")
			return
		}
		if s.metrics != nil {
			s.metrics.MessagesSent.Inc()
		}
	}
}

func (s *Server) readLoop(conn io.ReadWriter, roomConn *room.Connection, roomID string) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RateLimitPerSec), s.cfg.RateLimitBurst)

	for {
		data, opCode, err := wsutil.ReadClientData(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug().Err(err).Msg("read frame error")
			}
			return
		}
		if opCode == ws.OpClose {
			return
		}
		if opCode != ws.OpText && opCode != ws.OpBinary {
			continue
		}

		// Bump the room's idle timer on every frame, not only on
		// mutations: a superset of "touch on mutation" that can only
		// delay eviction, never cause it early.
		s.dir.Touch(roomID)

		if !limiter.Allow() {
			if s.metrics != nil {
				s.metrics.RateLimited.Inc()
			}
			s.replyError(conn, "rate limit exceeded")
			continue
		}

		var msg room.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.replyError(conn, "could not decode message: "+err.Error())
			continue
		}

		if s.metrics != nil {
			s.metrics.MessagesReceived.Inc()
		}
		if err := roomConn.Send(msg); err != nil {
			s.log.Warn().Err(err).Str("room", roomID).Msg("dispatch to room")
			return
		}
	}
}

func (s *Server) replyError(conn io.Writer, message string) {
	errMsg := room.OutboundErrorMsg(message)
	payload, err := json.Marshal(errMsg)
	if err != nil {
		return
	}
	if err := wsutil.WriteServerMessage(conn, ws.OpText, payload); err != nil {
		s.log.Debug().Err(err).Msg("write error reply")
	}
}
