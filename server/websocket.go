package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = 54 * time.Second

	// Outbound buffer per client; at ~10 updates/s this is minutes of
	// slack before the retry budget kicks in.
	sendBufferSize = 256

	// Paddle input throttle. Latest-wins semantics make drops harmless.
	inputRate  = 60
	inputBurst = 30
)

// Client represents a connected player. The player id doubles as the
// connection id: every message the hub handles is attributed to it.
type Client struct {
	PlayerID string

	conn   *websocket.Conn
	send   chan ServerMessage
	done   chan struct{}
	server *Server

	inputLimiter *rate.Limiter
}

// Server is the hub: it owns the client registry and handles every inbound
// message. Game state lives in the SessionStore and is advanced by the
// Scheduler; the hub only mutates it on ready and disconnect.
type Server struct {
	cfg Config
	log zerolog.Logger

	store  *SessionStore
	inputs *InputCache
	queue  MatchQueue

	mu      sync.RWMutex
	clients map[string]*Client

	upgrader websocket.Upgrader
}

// NewServer wires the hub to its collaborators. The same Server value is
// the Broadcaster handed to the Scheduler.
func NewServer(store *SessionStore, inputs *InputCache, queue MatchQueue, cfg Config, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log.With().Str("component", "hub").Logger(),
		store:   store,
		inputs:  inputs,
		queue:   queue,
		clients: make(map[string]*Client),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:       s.isValidOrigin,
		EnableCompression: true,
	}
	return s
}

// isValidOrigin checks if the origin is allowed to connect: same-origin,
// localhost, or the configured allow-list.
func (s *Server) isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No origin header - could be a non-browser client
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		s.log.Debug().Str("origin", origin).Msg("invalid origin URL")
		return false
	}

	if r.Host == originURL.Host {
		return true
	}

	if strings.HasPrefix(originURL.Host, "localhost:") ||
		strings.HasPrefix(originURL.Host, "127.0.0.1:") ||
		originURL.Host == "localhost" ||
		originURL.Host == "127.0.0.1" {
		return true
	}

	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}

	s.log.Warn().Str("origin", origin).Msg("rejected websocket origin")
	return false
}

// HandleWebSocket upgrades the connection and registers the player. The
// player id comes from the "player" query parameter so reconnecting
// clients keep their identity; absent that, one is minted.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		playerID = uuid.NewString()
	}
	if strings.HasPrefix(playerID, BotPrefix) {
		http.Error(w, "reserved player id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		PlayerID:     playerID,
		conn:         conn,
		send:         make(chan ServerMessage, sendBufferSize),
		done:         make(chan struct{}),
		server:       s,
		inputLimiter: rate.NewLimiter(inputRate, inputBurst),
	}

	s.mu.Lock()
	if _, taken := s.clients[playerID]; taken {
		s.mu.Unlock()
		s.log.Warn().Str("player", playerID).Msg("duplicate connection rejected")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "player already connected"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	s.clients[playerID] = client
	s.mu.Unlock()

	s.log.Info().Str("player", playerID).Msg("client connected")

	go client.writePump()
	go client.readPump()
}

// unregister tears the client down and runs the disconnect handler once.
func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	current, ok := s.clients[c.PlayerID]
	if ok && current == c {
		delete(s.clients, c.PlayerID)
	}
	s.mu.Unlock()
	if !ok || current != c {
		return
	}

	close(c.done)
	s.handleDisconnect(c.PlayerID)
	s.log.Info().Str("player", c.PlayerID).Msg("client disconnected")
}

// readPump handles incoming messages from the client.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Debug().Err(err).Str("player", c.PlayerID).Msg("read error")
			}
			break
		}

		c.handleMessage(msg)
	}
}

// writePump sends messages to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleMessage dispatches one inbound message. A panic in a handler is
// contained so it cannot kill the connection.
func (c *Client) handleMessage(msg ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.server.log.Error().
				Str("player", c.PlayerID).
				Str("msg", msg.Type).
				Interface("panic", r).
				Msg("panic in message handler")
		}
	}()

	switch msg.Type {
	case MsgTypeJoinMatchmaking:
		c.server.handleJoinMatchmaking(c)
	case MsgTypeStartBotMatch:
		c.server.handleStartBotMatch(c)
	case MsgTypeSendPaddleInput:
		c.server.handleSendPaddleInput(c, msg.Data)
	case MsgTypeRequestStartGame:
		c.server.handleRequestStartGame(c)
	case MsgTypeKeepAlive:
		c.server.handleKeepAlive(c)
	default:
		c.server.log.Debug().Str("player", c.PlayerID).Str("msg", msg.Type).Msg("unknown message type")
	}
}
