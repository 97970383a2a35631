package session

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Tracker keeps the live connection for each device and tab so a reconnecting
// tab replaces its stale socket and shutdown can close everything.
type Tracker struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Active returns the live connection for userID/sessionID, or nil.
func (t *Tracker) Active(userID, sessionID string) *websocket.Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if sessions, ok := t.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds conn for userID/sessionID, closing any connection it replaces.
func (t *Tracker) Register(userID, sessionID string, conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.active[userID]; !exists {
		t.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := t.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	t.active[userID][sessionID] = conn
	slog.Info("Voice session registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes conn if it is still the current one for userID/sessionID.
func (t *Tracker) Unregister(userID, sessionID string, conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sessions, ok := t.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(t.active, userID)
			}
			slog.Info("Voice session unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Count returns the number of live connections.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, sessions := range t.active {
		n += len(sessions)
	}
	return n
}

// CloseAll closes every live connection.
func (t *Tracker) CloseAll(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for userID, sessions := range t.active {
		for sid, conn := range sessions {
			_ = conn.Close(websocket.StatusGoingAway, reason)
			slog.Info("Voice session closed", "user_id", userID, "session_id", sid)
		}
	}
	t.active = make(map[string]map[string]*websocket.Conn)
}
