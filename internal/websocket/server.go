package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

// Message types streamed to clients
const (
	MessageTypeSessionOpened = "session_opened"
	MessageTypeSessionSealed = "session_sealed"
	MessageTypePositions     = "positions"
	MessageTypeAnalysisDone  = "analysis_complete"
)

// Message represents a WebSocket message
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client represents one WebSocket client connection
type Client struct {
	conn   *websocket.Conn
	send   chan *Message
	server *Server
	mu     sync.Mutex
	closed bool
}

// Server is the WebSocket hub: it tracks connected clients and fans
// broadcast messages out to them. Slow clients are dropped rather than
// allowed to stall the hub.
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new WebSocket hub
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		logger: log.Named("websocket"),
	}
}

// Run drives the hub loop. It should be started once, in its own goroutine.
func (s *Server) Run() {
	s.logger.Info("Starting WebSocket hub")

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", count))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.mu.Lock()
				client.closed = true
				client.mu.Unlock()
				close(client.send)
			}
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", count))

		case message := <-s.broadcast:
			s.mu.RLock()
			var stalled []*Client
			for client := range s.clients {
				client.mu.Lock()
				if client.closed {
					client.mu.Unlock()
					continue
				}
				client.mu.Unlock()

				select {
				case client.send <- message:
				default:
					// Send buffer full, drop the client
					stalled = append(stalled, client)
				}
			}
			s.mu.RUnlock()

			if len(stalled) > 0 {
				s.mu.Lock()
				for _, client := range stalled {
					if _, ok := s.clients[client]; ok {
						delete(s.clients, client)
						client.mu.Lock()
						if !client.closed {
							client.closed = true
							close(client.send)
						}
						client.mu.Unlock()
					}
				}
				s.mu.Unlock()
			}
		}
	}
}

// HandleConnection upgrades an HTTP request and registers the client
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("Client connected", logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:   conn,
		send:   make(chan *Message, 256),
		server: s,
	}
	s.register <- client

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for every connected client
func (s *Server) Broadcast(message *Message) {
	select {
	case s.broadcast <- message:
	default:
		s.logger.Warn("Broadcast queue full, dropping message",
			logger.String("type", message.Type))
	}
}

// BroadcastSessionOpened announces a newly opened flight session
func (s *Server) BroadcastSessionOpened(sess *tracking.FlightSession) {
	s.Broadcast(&Message{Type: MessageTypeSessionOpened, Data: sess})
}

// BroadcastSessionSealed announces a sealed flight session
func (s *Server) BroadcastSessionSealed(sess *tracking.FlightSession) {
	s.Broadcast(&Message{Type: MessageTypeSessionSealed, Data: sess})
}

// BroadcastPositions streams one poll's worth of position samples
func (s *Server) BroadcastPositions(samples []tracking.PositionSample) {
	if len(samples) == 0 {
		return
	}
	s.Broadcast(&Message{Type: MessageTypePositions, Data: samples})
}

// readPump discards client input and tears the client down when the
// connection drops. Clients are consumers only; there is no inbound
// protocol.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}
	}
}

// writePump forwards queued messages to the connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		data, err := json.Marshal(message)
		if err != nil {
			c.server.logger.Error("Failed to marshal message", logger.Error(err))
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
