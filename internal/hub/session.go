package hub

import (
	"sync"

	"chat-server/internal/models"
	"chat-server/internal/ratelimit"
)

// How many consecutive enqueue failures a connection may accumulate
// before the hub gives up and disconnects it instead of stalling fanout.
const maxConsecutiveDrops = 8

// Session is the in-memory state of one live websocket connection. The
// read loop owns it; other goroutines interact with it only through
// Enqueue and the joined-room set, which are safe for concurrent use.
type Session struct {
	ID       string // connection locator
	UserID   string
	Username string
	Limiter  *ratelimit.SlidingWindow

	mu    sync.RWMutex
	rooms map[string]bool

	send      chan models.OutboundFrame
	closeOnce sync.Once
	closed    chan struct{}

	dropMu sync.Mutex
	drops  int
}

func NewSession(id, userID, username string, limiter *ratelimit.SlidingWindow, queueSize int) *Session {
	return &Session{
		ID:       id,
		UserID:   userID,
		Username: username,
		Limiter:  limiter,
		rooms:    make(map[string]bool),
		send:     make(chan models.OutboundFrame, queueSize),
		closed:   make(chan struct{}),
	}
}

// Enqueue offers a frame to the connection's outbound queue without
// blocking. A connection whose queue stays full is closed so a slow
// client cannot stall fanout for everyone else.
func (s *Session) Enqueue(frame models.OutboundFrame) bool {
	select {
	case <-s.closed:
		return false
	default:
	}

	select {
	case s.send <- frame:
		s.dropMu.Lock()
		s.drops = 0
		s.dropMu.Unlock()
		return true
	default:
		s.dropMu.Lock()
		s.drops++
		persistentlyFull := s.drops >= maxConsecutiveDrops
		s.dropMu.Unlock()
		if persistentlyFull {
			s.Close()
		}
		return false
	}
}

// Outbound is consumed by the connection's write pump.
func (s *Session) Outbound() <-chan models.OutboundFrame {
	return s.send
}

// Close marks the session dead. Idempotent; the write pump exits when it
// observes Done.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

func (s *Session) Done() <-chan struct{} {
	return s.closed
}

func (s *Session) JoinRoom(roomID string) {
	s.mu.Lock()
	s.rooms[roomID] = true
	s.mu.Unlock()
}

func (s *Session) LeaveRoom(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

func (s *Session) InRoom(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

func (s *Session) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}
