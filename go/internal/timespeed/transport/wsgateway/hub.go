// Package wsgateway carries mod messages over WebSockets: the host runs a
// Hub that peers connect to with a Client, and the hub relays between peers.
package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/models"
	"github.com/mcdev12/timespeed/go/internal/timespeed/transport"
)

var (
	ErrClosed           = errors.New("gateway is closed")
	ErrInvalidPlayerID  = errors.New("player_id must be a non-zero integer")
	ErrPlayerConnected  = errors.New("player is already connected")
	ErrReservedPlayerID = errors.New("player_id belongs to the host")
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Connection is one connected peer.
type Connection struct {
	ID     string
	Player models.Farmer
	Conn   *websocket.Conn
	Send   chan []byte
	hub    *Hub

	ConnectedAt time.Time
	LastPing    time.Time
}

// Hub is the host side of the gateway. It implements transport.Bus for the
// host player and relays messages between peers.
type Hub struct {
	self     models.Farmer
	config   ConnectionConfig
	upgrader websocket.Upgrader

	messages chan []byte
	presence chan transport.Presence

	mu     sync.RWMutex
	conns  map[models.PlayerID]*Connection
	closed bool
}

// NewHub returns a hub owned by the host player self.
func NewHub(self models.Farmer, config ConnectionConfig) *Hub {
	return &Hub{
		self:   self,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		messages: make(chan []byte, transport.InboxSize),
		presence: make(chan transport.Presence, transport.InboxSize),
		conns:    make(map[models.PlayerID]*Connection),
	}
}

// Messages returns mod messages addressed to the host.
func (h *Hub) Messages() <-chan []byte {
	return h.messages
}

// Presence returns peer connects and disconnects.
func (h *Hub) Presence() <-chan transport.Presence {
	return h.presence
}

// HandleConnection upgrades /ws?player_id=&name= requests.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	player, err := h.playerFromQuery(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrPlayerConnected) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Int64("player_id", int64(player.ID)).Msg("failed to upgrade WebSocket connection")
		return
	}

	now := time.Now()
	c := &Connection{
		ID:          uuid.New().String(),
		Player:      player,
		Conn:        conn,
		Send:        make(chan []byte, transport.InboxSize),
		hub:         h,
		ConnectedAt: now,
		LastPing:    now,
	}
	if err := h.register(c); err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Int64("player_id", int64(player.ID)).
		Str("name", player.Name).
		Msg("WebSocket connection established")
}

func (h *Hub) playerFromQuery(r *http.Request) (models.Farmer, error) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(q.Get("player_id"), 10, 64)
	if err != nil || id == 0 {
		return models.Farmer{}, ErrInvalidPlayerID
	}
	pid := models.PlayerID(id)
	if pid == h.self.ID {
		return models.Farmer{}, ErrReservedPlayerID
	}

	h.mu.RLock()
	_, taken := h.conns[pid]
	h.mu.RUnlock()
	if taken {
		return models.Farmer{}, ErrPlayerConnected
	}

	name := q.Get("name")
	if name == "" {
		name = "Farmer " + pid.String()
	}
	return models.Farmer{ID: pid, Name: name}, nil
}

// register adds the connection, tells it who is already here, and tells
// everyone else about it.
func (h *Hub) register(c *Connection) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if _, taken := h.conns[c.Player.ID]; taken {
		h.mu.Unlock()
		return ErrPlayerConnected
	}
	others := h.snapshotLocked()
	h.conns[c.Player.ID] = c
	h.mu.Unlock()

	host := h.self
	host.IsMainPlayer = true
	h.sendPresence(c, transport.PresenceJoin, host)
	for _, o := range others {
		h.sendPresence(c, transport.PresenceJoin, o.Player)
		h.sendPresence(o, transport.PresenceJoin, c.Player)
	}
	h.emitPresence(transport.Presence{Kind: transport.PresenceJoin, Player: c.Player})
	return nil
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	current, ok := h.conns[c.Player.ID]
	if !ok || current != c {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.Player.ID)
	close(c.Send)
	others := h.snapshotLocked()
	h.mu.Unlock()

	for _, o := range others {
		h.sendPresence(o, transport.PresenceLeave, c.Player)
	}
	h.emitPresence(transport.Presence{Kind: transport.PresenceLeave, Player: c.Player})

	log.Info().
		Str("connection_id", c.ID).
		Int64("player_id", int64(c.Player.ID)).
		Msg("connection unregistered")
}

func (h *Hub) snapshotLocked() []*Connection {
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Player.ID < conns[j].Player.ID })
	return conns
}

func (h *Hub) emitPresence(p transport.Presence) {
	select {
	case h.presence <- p:
	default:
		log.Warn().Int64("player_id", int64(p.Player.ID)).Msg("presence inbox full, dropping event")
	}
}

func (h *Hub) sendPresence(c *Connection, kind transport.PresenceKind, player models.Farmer) {
	data, err := presenceFrame(kind, player)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal presence frame")
		return
	}
	h.enqueue(c, data)
}

// enqueue hands data to the connection's write pump, closing slow connections.
func (h *Hub) enqueue(c *Connection, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.conns[c.Player.ID] != c {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Int64("player_id", int64(c.Player.ID)).
			Msg("connection send buffer full, closing connection")
		c.Conn.Close()
	}
}

// Send delivers a host message to every peer when to is empty, otherwise to each listed peer.
func (h *Hub) Send(_ context.Context, raw []byte, to []models.PlayerID) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	h.route(h.self.ID, to, raw)
	return nil
}

// route delivers raw from sender. Broadcasts reach the host and every peer but the sender.
func (h *Hub) route(from models.PlayerID, to []models.PlayerID, raw []byte) {
	data, err := messageFrame(from, to, raw)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message frame")
		return
	}

	h.mu.RLock()
	peers := h.snapshotLocked()
	h.mu.RUnlock()

	if len(to) == 0 {
		if from != h.self.ID {
			h.deliverLocal(raw)
		}
		for _, c := range peers {
			if c.Player.ID != from {
				h.enqueue(c, data)
			}
		}
		return
	}

	for _, id := range to {
		if id == from {
			continue
		}
		if id == h.self.ID {
			h.deliverLocal(raw)
			continue
		}
		h.mu.RLock()
		c := h.conns[id]
		h.mu.RUnlock()
		if c == nil {
			log.Debug().Int64("player_id", int64(id)).Msg("no connection for addressee, dropping message")
			continue
		}
		h.enqueue(c, data)
	}
}

func (h *Hub) deliverLocal(raw []byte) {
	select {
	case h.messages <- raw:
	default:
		log.Warn().Msg("inbox full, dropping mod message")
	}
}

// Players returns the connected peers, sorted by id.
func (h *Hub) Players() []models.Farmer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	players := make([]models.Farmer, 0, len(h.conns))
	for _, c := range h.snapshotLocked() {
		players = append(players, c.Player)
	}
	return players
}

// Stats returns statistics about active connections
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]any{
		"total_connections": len(h.conns),
		"host_id":           int64(h.self.ID),
	}
}

// Close disconnects every peer.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := h.snapshotLocked()
	h.mu.Unlock()

	for _, c := range conns {
		c.Conn.Close()
	}
	return nil
}

// writePump handles sending frames to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles frames from the peer until the connection drops.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.handleFrame(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}

func (c *Connection) handleFrame(message []byte) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("malformed frame")
		return
	}
	if f.Type != frameMessage {
		log.Debug().Str("connection_id", c.ID).Str("type", string(f.Type)).Msg("ignoring frame from peer")
		return
	}
	if err := checkSender(c.Player.ID, f.Data); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Int64("player_id", int64(c.Player.ID)).
			Msg("dropping mod message with a forged sender")
		return
	}
	c.hub.route(c.Player.ID, f.To, f.Data)
}
