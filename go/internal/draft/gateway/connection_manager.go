package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// ErrNotInRoom is returned when a user connects to a room they are not in.
var ErrNotInRoom = errors.New("user is not a member or spectator of the room")

// SnapshotProvider supplies the full room state a new channel starts from.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, roomCode string) (events.SnapshotPayload, error)
}

// ConnectionManager manages WebSocket connections, keyed by user.
type ConnectionManager struct {
	connections map[string]map[*Connection]struct{}
	mu          sync.RWMutex

	upgrader  websocket.Upgrader
	config    ConnectionConfig
	snapshots SnapshotProvider
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	id       string
	userID   string
	roomCode string
	ws       *websocket.Conn
	manager  *ConnectionManager

	send     chan []byte
	sendMu   sync.Mutex
	closed   bool
	snapshot []byte

	connectedAt time.Time
	lastPing    atomic.Int64
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, snapshots SnapshotProvider) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	return &ConnectionManager{
		connections: make(map[string]map[*Connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:    config,
		snapshots: snapshots,
	}
}

// SetSnapshotProvider wires the source of connect-time snapshots when it is
// built after the manager.
func (cm *ConnectionManager) SetSnapshotProvider(p SnapshotProvider) {
	cm.snapshots = p
}

// Connect registers a channel for userID in roomCode, loads the room snapshot
// and upgrades the HTTP connection. The connection is registered before the
// snapshot is read so no event emitted after the snapshot can be missed; the
// snapshot is always the first message written.
func (cm *ConnectionManager) Connect(w http.ResponseWriter, r *http.Request, userID, roomCode string) error {
	conn := &Connection{
		id:          uuid.New().String(),
		userID:      userID,
		roomCode:    roomCode,
		manager:     cm,
		send:        make(chan []byte, cm.config.SendBufferSize),
		connectedAt: time.Now(),
	}
	conn.lastPing.Store(time.Now().UnixNano())

	cm.registerConnection(conn)

	snapshot, err := cm.snapshotFor(r.Context(), userID, roomCode)
	if err != nil {
		cm.unregisterConnection(conn)
		return err
	}
	conn.snapshot = snapshot

	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cm.unregisterConnection(conn)
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}
	conn.ws = ws

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.id).
		Str("user_id", userID).
		Str("room_code", roomCode).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) snapshotFor(ctx context.Context, userID, roomCode string) ([]byte, error) {
	snap, err := cm.snapshots.Snapshot(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(snap.Members, userID) && !lo.Contains(snap.Spectators, userID) {
		return nil, ErrNotInRoom
	}
	ev, err := events.New(roomCode, events.EventTypeSnapshot, time.Now(), snap)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[conn.userID] == nil {
		cm.connections[conn.userID] = make(map[*Connection]struct{})
	}
	cm.connections[conn.userID][conn] = struct{}{}

	log.Debug().
		Str("connection_id", conn.id).
		Str("user_id", conn.userID).
		Int("user_connections", len(cm.connections[conn.userID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager. Safe to call
// more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if conns, exists := cm.connections[conn.userID]; exists {
		if _, exists := conns[conn]; exists {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(cm.connections, conn.userID)
			}
			log.Info().
				Str("connection_id", conn.id).
				Str("user_id", conn.userID).
				Str("room_code", conn.roomCode).
				Msg("connection unregistered")
		}
	}
	cm.mu.Unlock()

	conn.closeSend()
}

// ChannelsFor returns the user's live channels.
func (cm *ConnectionManager) ChannelsFor(participant string) []Channel {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	conns := cm.connections[participant]
	out := make([]Channel, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

// Connected reports whether the user has a live channel to roomCode.
func (cm *ConnectionManager) Connected(roomCode, participant string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for c := range cm.connections[participant] {
		if c.roomCode == roomCode {
			return true
		}
	}
	return false
}

// ConnectionStats summarises the live connections.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ConnectedUsers   int            `json:"connected_users"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ConnectedUsers:  len(cm.connections),
		RoomConnections: make(map[string]int),
	}
	for _, conns := range cm.connections {
		for c := range conns {
			stats.TotalConnections++
			stats.RoomConnections[c.roomCode]++
		}
	}
	stats.ActiveRooms = len(stats.RoomConnections)
	return stats
}

// CloseAll closes every connection, used on shutdown.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, conns := range cm.connections {
		for c := range conns {
			all = append(all, c)
		}
	}
	cm.mu.RUnlock()

	for _, c := range all {
		cm.unregisterConnection(c)
	}
}

func (c *Connection) ID() string   { return c.id }
func (c *Connection) Room() string { return c.roomCode }

// Send queues data for the write pump. A connection whose buffer is full is
// too slow to keep up and is closed.
func (c *Connection) Send(data []byte) error {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return ErrChannelClosed
	}
	select {
	case c.send <- data:
		c.sendMu.Unlock()
		return nil
	default:
	}
	c.sendMu.Unlock()

	log.Warn().
		Str("connection_id", c.id).
		Str("user_id", c.userID).
		Msg("connection send buffer full, closing connection")
	c.manager.unregisterConnection(c)
	return ErrChannelFull
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.manager.unregisterConnection(c)
	}()

	if c.snapshot != nil {
		c.ws.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, c.snapshot); err != nil {
			log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write snapshot")
			return
		}
	}

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.manager.unregisterConnection(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.manager.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		c.lastPing.Store(time.Now().UnixNano())
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.ws.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

// handleClientMessage logs messages received from the client. State changes
// go through the HTTP API.
func (c *Connection) handleClientMessage(message []byte) {
	ev := log.Debug().
		Str("connection_id", c.id).
		Str("user_id", c.userID).
		Time("last_pong", time.Unix(0, c.lastPing.Load()))
	if json.Valid(message) {
		ev = ev.RawJSON("message", message)
	} else {
		ev = ev.Bytes("message", message)
	}
	ev.Msg("received client message")
}
