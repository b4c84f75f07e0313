package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kreymann/resetwatch/internal/alert"
	"github.com/kreymann/resetwatch/internal/models"
)

// Manager owns the pool of dashboard WebSocket connections and fans tick
// snapshots and alerts out to them. It implements both the engine's snapshot
// sink and the dispatcher's notifier.
type Manager struct {
	mu          sync.RWMutex
	connections map[*Connection]bool

	upgrader    websocket.Upgrader
	config      Config
	broadcastCh chan *Event
}

// Connection is one dashboard client.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *Manager

	ConnectedAt time.Time
}

// Config holds WebSocket connection tuning and alert delivery preferences.
type Config struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	CheckOrigin    func(r *http.Request) bool

	// EnableSound and EnableDesktop are forwarded with every alert; the
	// browser honors them when delivering the actual notification.
	EnableSound   bool
	EnableDesktop bool
}

// DefaultConfig returns the default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// The dashboard is same-origin in production; allow all in dev.
			return true
		},
		EnableSound:   true,
		EnableDesktop: true,
	}
}

// NewManager creates a connection manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		config:      cfg,
		broadcastCh: make(chan *Event, 256),
	}
}

// Run processes the broadcast channel until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway shutting down")
			m.closeAll()
			return
		case event := <-m.broadcastCh:
			m.handleBroadcast(event)
		}
	}
}

// BroadcastSnapshot queues a tick snapshot for fanout. A full queue drops the
// snapshot rather than blocking the tick loop; the next tick replaces it
// anyway.
func (m *Manager) BroadcastSnapshot(now time.Time, records []models.TimerRecord) {
	event, err := newEvent(EventTypeSnapshot, now, SnapshotPayload{Now: now, Timers: records})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot event")
		return
	}
	select {
	case m.broadcastCh <- event:
	default:
		log.Warn().Msg("broadcast channel full, dropping snapshot")
	}
}

// Notify pushes a fired alert to all connected dashboards. The browser side
// performs the actual desktop/sound notification.
func (m *Manager) Notify(n alert.Notification) error {
	event, err := newEvent(EventTypeAlert, time.Now(), AlertPayload{
		Notification: n,
		Sound:        m.config.EnableSound,
		Desktop:      m.config.EnableDesktop,
	})
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}
	select {
	case m.broadcastCh <- event:
		return nil
	default:
		return fmt.Errorf("broadcast channel full")
	}
}

// ServeHTTP upgrades a dashboard request to WebSocket and starts its pumps.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 64),
		Manager:     m,
		ConnectedAt: time.Now(),
	}
	m.register(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().Str("connection_id", connection.ID).Msg("dashboard connected")
}

func (m *Manager) register(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn] = true
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[conn]; ok {
		delete(m.connections, conn)
		close(conn.Send)
		log.Info().Str("connection_id", conn.ID).Msg("dashboard disconnected")
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.connections {
		delete(m.connections, conn)
		close(conn.Send)
		conn.Conn.Close()
	}
}

// ConnectionCount returns the number of live dashboard connections.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *Manager) handleBroadcast(event *Event) {
	m.mu.RLock()
	targets := make([]*Connection, 0, len(m.connections))
	for conn := range m.connections {
		targets = append(targets, conn)
	}
	m.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			// Slow or dead client; cut it loose rather than stall the rest.
			log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, closing connection")
			m.unregister(conn)
			conn.Conn.Close()
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write to WebSocket")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages; the dashboard talks back over the HTTP
// control API. It exists to process pongs and detect closes.
func (c *Connection) readPump() {
	defer func() {
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("WebSocket read error")
			}
			return
		}
	}
}
