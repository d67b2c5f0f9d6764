// Package websocket serves the relay protocol over gorilla/websocket.
package websocket

import (
	"chat-relay/services"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const wildcardOrigin = "*"

type Config struct {
	AllowedOrigins []string
	WriteTimeout   time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

// Server upgrades HTTP requests and runs one read loop per connection.
// Events of a connection are handled in arrival order by that loop.
type Server struct {
	log      *slog.Logger
	service  services.IChatService
	upgrader websocket.Upgrader
	config   Config
	// mu orders wg.Add against Shutdown so no connection is accepted after Wait starts.
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func NewServer(log *slog.Logger, service services.IChatService, config Config) *Server {
	s := &Server{
		log:     log,
		service: service,
		config:  config,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.acquire() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log.Warn("Websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(ws, s.config.WriteTimeout)
	session := s.service.Connect(conn, r.URL.Query().Get("userId"))
	// Shutdown may have run DisconnectAll before this session was registered.
	if s.isClosing() {
		session.Close("shutdown")
		return
	}
	reason := s.readLoop(r.Context(), ws, session)
	session.Close(reason)
}

func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// readLoop returns the disconnect reason once the connection stops being readable.
func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, session *services.Session) string {
	if s.config.MaxMessageSize > 0 {
		ws.SetReadLimit(s.config.MaxMessageSize)
	}
	_ = ws.SetReadDeadline(time.Now().Add(s.config.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.config.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "client"
			}
			s.log.Debug("Read loop stopped", "error", err)
			return "read_error"
		}
		_ = ws.SetReadDeadline(time.Now().Add(s.config.PongWait))
		session.HandleRaw(ctx, data)
	}
}

// Shutdown refuses new upgrades, closes every live connection and waits for the read loops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.service.DisconnectAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkOrigin accepts requests without an Origin header (non-browser clients).
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.config.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(s.config.AllowedOrigins, wildcardOrigin) || lo.Contains(s.config.AllowedOrigins, origin)
}
