package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

// Server broadcasts engine events (order saved, order completed,
// checkout, table opened) to connected front-of-house screens. The
// engine pushes into Broadcast directly; there is no polling.
type Server struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func New(logger *zap.Logger) *Server {
	return &Server{logger: logger, clients: make(map[*client]struct{})}
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	_ = c.writeJSON(Event{Type: "connected", Payload: map[string]any{
		"ts": time.Now().Format(time.RFC3339),
	}})

	// Reader loop only drains control frames; clients are
	// listen-only. Exit removes the client.
	go func() {
		defer s.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = c.conn.Close()
}

func (s *Server) Broadcast(eventType string, payload any) {
	event := Event{Type: eventType, Payload: payload}

	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if err := c.writeJSON(event); err != nil {
			s.drop(c)
		}
	}
}
