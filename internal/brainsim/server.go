// Package brainsim is a small stand-in for the brain: a WebSocket server
// that announces its face contract, answers user input with a streamed
// reply (echoed, or from a model when one is configured) and picks an
// expression from keywords in the input.
package brainsim

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kevingtzz/BMO-project/internal/protocol"
	"github.com/rs/zerolog"
)

// Config configures the demo brain
type Config struct {
	ContractVersion string
	EmotionDuration time.Duration // duration_ms attached to inferred emotions
	ChunkDelay      time.Duration // pause between reply chunks
	Responder       Responder     // nil echoes the input
}

// Server broadcasts face events to every connected face
type Server struct {
	cfg      Config
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	newID    func() string

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// NewServer creates a demo brain
func NewServer(cfg Config, logger zerolog.Logger) *Server {
	if cfg.Responder == nil {
		cfg.Responder = Echo
	}
	return &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "brainsim").Logger(),
		upgrader: websocket.Upgrader{
			// Faces are served from anywhere during development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		newID:   func() string { return uuid.NewString() },
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected faces
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request and serves one face until it goes away
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	c := &client{conn: conn}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	total := len(s.clients)
	s.mu.Unlock()
	s.logger.Info().Int("total", total).Msg("Face connected")

	defer func() {
		s.drop(c)
		conn.Close()
	}()

	if data, err := protocol.Encode(protocol.ContractInfo{Version: s.cfg.ContractVersion}); err == nil {
		if err := c.write(data); err != nil {
			return
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleIncoming(r.Context(), raw)
	}
}

func (s *Server) handleIncoming(ctx context.Context, raw []byte) {
	switch ev := protocol.Decode(raw).(type) {
	case protocol.Input:
		s.logger.Info().Str("text", ev.Text).Msg("Face -> brain input")
		s.Reply(ctx, ev.Text)
	case protocol.RawText:
		s.logger.Info().Str("raw", preview(ev.Text)).Msg("Face -> brain raw frame")
	default:
		s.logger.Info().Str("type", string(ev.Kind())).Msg("Face -> brain event ignored")
	}
}

// Broadcast sends ev to every face. Faces that fail the write are dropped.
func (s *Server) Broadcast(ev protocol.Event) {
	data, err := protocol.Encode(ev)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode event")
		return
	}

	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	s.logger.Debug().Str("type", string(ev.Kind())).Int("clients", len(targets)).Msg("Brain -> face")
	for _, c := range targets {
		if err := c.write(data); err != nil {
			s.logger.Warn().Err(err).Msg("Send failed for a face, dropping it")
			s.drop(c)
			c.conn.Close()
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	remaining := len(s.clients)
	s.mu.Unlock()
	if ok {
		s.logger.Info().Int("remaining", remaining).Msg("Face disconnected")
	}
}

// Reply runs the demo response to text: an inferred emotion, thinking, the
// reply one sentence per chunk while speaking, then speaking_end. The
// emotion goes out before the responder is asked, so the face reacts while
// the reply is produced. A failing responder falls back to echoing text.
// It stops early when ctx is done.
func (s *Server) Reply(ctx context.Context, text string) {
	s.Broadcast(protocol.Emotion{
		Value:       InferExpression(text),
		Duration:    s.cfg.EmotionDuration,
		HasDuration: s.cfg.EmotionDuration > 0,
	})
	s.Broadcast(protocol.State{Value: protocol.StateThinking})

	reply, err := s.cfg.Responder.Respond(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Msg("Responder failed, echoing input")
		reply = text
	}

	id := s.newID()
	s.Broadcast(protocol.MessageStart{ID: id})
	s.Broadcast(protocol.State{Value: protocol.StateSpeaking})
	for i, sentence := range SplitSentences(reply) {
		if i > 0 && !s.pause(ctx) {
			return
		}
		s.Broadcast(protocol.MessageChunk{ID: id, Index: i, Text: sentence})
	}
	s.Broadcast(protocol.MessageEnd{ID: id})
	s.Broadcast(protocol.SpeakingEnd{})
}

func (s *Server) pause(ctx context.Context) bool {
	if s.cfg.ChunkDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.ChunkDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ListenAndServe serves the demo brain on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Brain WebSocket server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeAll()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// closeAll closes every face connection; hijacked connections are not
// tracked by http.Server.Shutdown.
func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "brain shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
	}
	s.clients = make(map[*client]struct{})
}

func preview(text string) string {
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return strings.TrimSpace(text)
}
