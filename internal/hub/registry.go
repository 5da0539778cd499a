// Package hub tracks the websocket connections held by this process and
// resolves broadcast targets for the router. The registry is created at
// startup and handed to the handlers explicitly; there is no package
// level singleton.
package hub

import (
	"sync"

	"chat-server/internal/models"
)

// Registry is the process-wide table of live sessions. All methods are
// safe for concurrent use; delivery never blocks on a slow connection
// because frames go through each session's bounded queue.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // locator -> session
	byUser   map[string]map[string]*Session // userID -> locator -> session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]*Session),
	}
}

func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	if r.byUser[s.UserID] == nil {
		r.byUser[s.UserID] = make(map[string]*Session)
	}
	r.byUser[s.UserID][s.ID] = s
}

// Unregister removes a session and reports whether it was the user's
// last connection on this process.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	delete(r.sessions, id)

	conns := r.byUser[s.UserID]
	delete(conns, id)
	if len(conns) == 0 {
		delete(r.byUser, s.UserID)
		return true
	}
	return false
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// snapshot copies the session list out so delivery happens without the
// registry lock held.
func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// BroadcastRoom pushes a frame to every local connection currently
// joined to the room and returns how many received it.
func (r *Registry) BroadcastRoom(roomID string, frame models.OutboundFrame) int {
	delivered := 0
	for _, s := range r.snapshot() {
		if s.InRoom(roomID) && s.Enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// BroadcastAll pushes a frame to every local connection.
func (r *Registry) BroadcastAll(frame models.OutboundFrame) int {
	delivered := 0
	for _, s := range r.snapshot() {
		if s.Enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// SendToUser pushes a frame to every local connection of one account.
func (r *Registry) SendToUser(userID string, frame models.OutboundFrame) int {
	r.mu.RLock()
	conns := make([]*Session, 0, len(r.byUser[userID]))
	for _, s := range r.byUser[userID] {
		conns = append(conns, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range conns {
		if s.Enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// IsUserInRoom reports whether any local connection of the account has
// the room joined.
func (r *Registry) IsUserInRoom(userID, roomID string) bool {
	r.mu.RLock()
	conns := make([]*Session, 0, len(r.byUser[userID]))
	for _, s := range r.byUser[userID] {
		conns = append(conns, s)
	}
	r.mu.RUnlock()

	for _, s := range conns {
		if s.InRoom(roomID) {
			return true
		}
	}
	return false
}

// Shutdown closes every session. Used during process teardown.
func (r *Registry) Shutdown() {
	for _, s := range r.snapshot() {
		s.Close()
	}
}
