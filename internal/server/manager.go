package server

import (
	"sync"

	"chatsync/internal/models"
	"chatsync/internal/utils"

	"github.com/gofiber/websocket/v2"
)

type connMeta struct {
	UserID   string
	UserName string
	Conn     *websocket.Conn
	// writeMu serializes writes; fiber's websocket conn is not safe for
	// concurrent writers.
	writeMu *sync.Mutex
}

// Manager tracks which websocket connections are live and which conversation
// each one has joined.
type Manager struct {
	mu sync.RWMutex
	// conversationID -> connID -> meta
	joined   map[string]map[string]*connMeta
	connMeta map[string]*connMeta
}

func NewManager() *Manager {
	return &Manager{
		joined:   make(map[string]map[string]*connMeta),
		connMeta: make(map[string]*connMeta),
	}
}

// Register stores metadata for a new websocket connection.
func (m *Manager) Register(connID, userID, userName string, c *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connMeta[connID] = &connMeta{
		UserID:   userID,
		UserName: userName,
		Conn:     c,
		writeMu:  &sync.Mutex{},
	}
}

// Unregister removes the connection from every conversation and drops its
// metadata.
func (m *Manager) Unregister(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for convID, conns := range m.joined {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.joined, convID)
		}
	}
	delete(m.connMeta, connID)
}

func (m *Manager) Join(conversationID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.connMeta[connID]
	if !ok {
		return
	}
	if _, ok := m.joined[conversationID]; !ok {
		m.joined[conversationID] = make(map[string]*connMeta)
	}
	m.joined[conversationID][connID] = meta
}

func (m *Manager) Leave(conversationID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conns, ok := m.joined[conversationID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.joined, conversationID)
		}
	}
}

// BroadcastToConversation sends an event to every connection joined to the
// conversation, optionally excluding one.
func (m *Manager) BroadcastToConversation(conversationID string, ev models.Event, excludeConnID string) {
	m.mu.RLock()
	var targets []*connMeta
	for id, meta := range m.joined[conversationID] {
		if id == excludeConnID {
			continue
		}
		targets = append(targets, meta)
	}
	m.mu.RUnlock()

	for _, meta := range targets {
		m.send(meta, ev)
	}
}

// SendToUser sends an event to every live connection of a user, joined to
// the conversation or not.
func (m *Manager) SendToUser(userID string, ev models.Event) {
	m.mu.RLock()
	var targets []*connMeta
	for _, meta := range m.connMeta {
		if meta.UserID == userID {
			targets = append(targets, meta)
		}
	}
	m.mu.RUnlock()

	for _, meta := range targets {
		m.send(meta, ev)
	}
}

// SendTo sends an event to one connection.
func (m *Manager) SendTo(connID string, ev models.Event) {
	m.mu.RLock()
	meta, ok := m.connMeta[connID]
	m.mu.RUnlock()

	if ok {
		m.send(meta, ev)
	}
}

// IsUserOnline checks if any active connection belongs to the given user.
func (m *Manager) IsUserOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, meta := range m.connMeta {
		if meta.UserID == userID {
			return true
		}
	}
	return false
}

func (m *Manager) send(meta *connMeta, ev models.Event) {
	meta.writeMu.Lock()
	err := utils.SendJSON(meta.Conn, ev)
	meta.writeMu.Unlock()
	// A failed write means the connection is going away; the read loop
	// handles the disconnection.
	utils.LogError(err, "manager send")
}
