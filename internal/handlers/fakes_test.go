package handlers

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"chat-server/internal/apperr"
	"chat-server/internal/bus"
	"chat-server/internal/config"
	"chat-server/internal/hub"
	"chat-server/internal/models"
	"chat-server/internal/ratelimit"

	"github.com/google/uuid"
)

// In-memory doubles for the persistence and transport boundaries. The
// loopback bus feeds published events straight back into the gateway's
// router, the same path a NATS delivery would take.

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*models.User)}
}

func (s *memUserStore) Create(ctx context.Context, username, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return nil, apperr.New(apperr.ErrConflict, "username already exists")
		}
	}
	u := &models.User{ID: uuid.New().String(), Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	s.users[u.ID] = u
	return u, nil
}

func (s *memUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.ErrNotFound, "User not found")
}

func (s *memUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.New(apperr.ErrNotFound, "User not found")
}

func (s *memUserStore) List(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *memUserStore) TouchLastSeen(ctx context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastSeen = &t
	}
	return nil
}

type memRoomStore struct {
	mu      sync.Mutex
	rooms   map[string]*models.Room
	members map[string]map[string]*models.Membership // roomID -> userID
}

func newMemRoomStore() *memRoomStore {
	return &memRoomStore{
		rooms:   make(map[string]*models.Room),
		members: make(map[string]map[string]*models.Membership),
	}
}

func (s *memRoomStore) Create(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room.CreatedAt = time.Now()
	cp := *room
	s.rooms[room.ID] = &cp
	s.members[room.ID] = map[string]*models.Membership{
		room.CreatedBy: {RoomID: room.ID, UserID: room.CreatedBy, Role: models.RoleOwner, JoinedAt: time.Now()},
	}
	return nil
}

func (s *memRoomStore) FindByID(ctx context.Context, id string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, apperr.New(apperr.ErrNotFound, "Room not found")
}

func (s *memRoomStore) FindByInviteCode(ctx context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.InviteCode != nil && *r.InviteCode == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.ErrNotFound, "Room not found")
}

func (s *memRoomStore) ListByUser(ctx context.Context, userID string) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Room
	for roomID, members := range s.members {
		if _, ok := members[userID]; ok {
			out = append(out, *s.rooms[roomID])
		}
	}
	return out, nil
}

func (s *memRoomStore) Members(ctx context.Context, roomID string) ([]models.RoomMemberInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RoomMemberInfo
	for _, m := range s.members[roomID] {
		out = append(out, models.RoomMemberInfo{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt})
	}
	return out, nil
}

func (s *memRoomStore) MemberIDs(ctx context.Context, roomID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.members[roomID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memRoomStore) Membership(ctx context.Context, roomID, userID string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[roomID][userID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, apperr.New(apperr.ErrForbidden, "Not a member of this room")
}

func (s *memRoomStore) AddMember(ctx context.Context, roomID, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[roomID] == nil {
		s.members[roomID] = make(map[string]*models.Membership)
	}
	if _, ok := s.members[roomID][userID]; ok {
		return nil
	}
	s.members[roomID][userID] = &models.Membership{RoomID: roomID, UserID: userID, Role: role, JoinedAt: time.Now()}
	return nil
}

func (s *memRoomStore) RemoveMember(ctx context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[roomID], userID)
	return nil
}

func (s *memRoomStore) CountMembers(ctx context.Context, roomID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members[roomID]), nil
}

type memMessageStore struct {
	mu       sync.Mutex
	messages map[string]*models.Message
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{messages: make(map[string]*models.Message)}
}

func (s *memMessageStore) Create(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.CreatedAt = time.Now()
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *memMessageStore) FindByID(ctx context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, apperr.New(apperr.ErrNotFound, "Message not found")
}

func (s *memMessageStore) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memMessageStore) Edit(ctx context.Context, id, content string, editedAt time.Time) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "Message not found")
	}
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &editedAt
	cp := *m
	return &cp, nil
}

func (s *memMessageStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return apperr.New(apperr.ErrNotFound, "Message not found")
	}
	delete(s.messages, id)
	return nil
}

func (s *memMessageStore) MarkRead(ctx context.Context, id string, readAt time.Time) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "Message not found")
	}
	if m.ReadAt == nil {
		m.ReadAt = &readAt
	}
	cp := *m
	return &cp, nil
}

func (s *memMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type memNotificationStore struct {
	mu    sync.Mutex
	items map[string]*models.Notification
}

func newMemNotificationStore() *memNotificationStore {
	return &memNotificationStore{items: make(map[string]*models.Notification)}
}

func (s *memNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.CreatedAt = time.Now()
	cp := *n
	s.items[n.ID] = &cp
	return nil
}

func (s *memNotificationStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *memNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.items[id]; ok && n.UserID == userID {
		n.IsRead = true
		return nil
	}
	return apperr.New(apperr.ErrNotFound, "Notification not found")
}

func (s *memNotificationStore) countFor(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID {
			count++
		}
	}
	return count
}

type fakeDirectory struct {
	mu      sync.Mutex
	entries map[string]map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{entries: make(map[string]map[string]bool)}
}

func (d *fakeDirectory) Set(ctx context.Context, accountID, locator string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entries[accountID] == nil {
		d.entries[accountID] = make(map[string]bool)
	}
	d.entries[accountID][locator] = true
	return nil
}

func (d *fakeDirectory) Get(ctx context.Context, accountID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for loc := range d.entries[accountID] {
		out = append(out, loc)
	}
	return out, nil
}

func (d *fakeDirectory) Remove(ctx context.Context, accountID, locator string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries[accountID], locator)
	if len(d.entries[accountID]) == 0 {
		delete(d.entries, accountID)
	}
	return nil
}

func (d *fakeDirectory) GetBatch(ctx context.Context, accountIDs []string) (map[string][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string][]string)
	for _, id := range accountIDs {
		for loc := range d.entries[id] {
			out[id] = append(out[id], loc)
		}
	}
	return out, nil
}

func (d *fakeDirectory) Refresh(ctx context.Context, accountID, locator string) error { return nil }

// loopbackBus implements bus.Publisher by dispatching every publish
// synchronously into the gateway's router, mimicking a single-process
// NATS round trip. The publisher gets no shortcut: its own events come
// back through the same handler as everyone else's.
type loopbackBus struct {
	mu         sync.Mutex
	gateway    *Gateway
	chatEvents []bus.ChatEvent
	userEvents []bus.UserEvent
}

func (b *loopbackBus) PublishChat(ctx context.Context, event, roomID string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	evt := bus.ChatEvent{Event: event, RoomID: roomID, Data: raw}
	b.mu.Lock()
	b.chatEvents = append(b.chatEvents, evt)
	g := b.gateway
	b.mu.Unlock()
	if g != nil {
		return g.HandleChatEvent(ctx, evt)
	}
	return nil
}

func (b *loopbackBus) PublishUser(ctx context.Context, userID, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	evt := bus.UserEvent{UserID: userID, Event: event, Data: raw}
	b.mu.Lock()
	b.userEvents = append(b.userEvents, evt)
	g := b.gateway
	b.mu.Unlock()
	if g != nil {
		return g.HandleUserEvent(ctx, evt)
	}
	return nil
}

func (b *loopbackBus) chatEventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chatEvents)
}

// testGateway builds a gateway wired entirely to in-memory fakes.
func testGateway() (*Gateway, *memRoomStore, *memMessageStore, *memNotificationStore, *fakeDirectory, *loopbackBus) {
	rooms := newMemRoomStore()
	messages := newMemMessageStore()
	notifications := newMemNotificationStore()
	dir := newFakeDirectory()
	b := &loopbackBus{}

	cfg := config.Config{
		RateLimitMax:    5,
		RateLimitWindow: 10 * time.Second,
		SendQueueSize:   32,
	}

	g := NewGateway(hub.NewRegistry(), dir, b, newMemUserStore(), rooms, messages, notifications, cfg)
	b.mu.Lock()
	b.gateway = g
	b.mu.Unlock()
	return g, rooms, messages, notifications, dir, b
}

// connect registers a live session the way the websocket handler would.
func connect(g *Gateway, userID string) *hub.Session {
	s := hub.NewSession(uuid.New().String(), userID, "user-"+userID,
		ratelimit.NewSlidingWindow(g.Cfg.RateLimitMax, g.Cfg.RateLimitWindow), g.Cfg.SendQueueSize)
	g.Registry.Register(s)
	_ = g.Presence.Set(context.Background(), userID, s.ID)
	return s
}

// drain empties a session's outbound queue and returns the frames.
func drain(s *hub.Session) []models.OutboundFrame {
	var out []models.OutboundFrame
	for {
		select {
		case f := <-s.Outbound():
			out = append(out, f)
		default:
			return out
		}
	}
}

// framesOf filters drained frames by event name.
func framesOf(frames []models.OutboundFrame, event string) []models.OutboundFrame {
	var out []models.OutboundFrame
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}
