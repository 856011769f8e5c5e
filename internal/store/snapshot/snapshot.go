package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"roomchat/internal/ids"
	"roomchat/internal/store"
)

// Store implements store.Store on in-memory maps mirrored to a single JSON
// document on disk. One process-wide RWMutex guards all state: mutators hold
// it across mutate+persist, and cross-room reads like ListRooms copy under
// the read lock and release it before returning. Saves rewrite the whole
// document to a temp file and rename it into place, so a crash mid-save
// never truncates existing data.
type Store struct {
	mu       sync.RWMutex
	path     string // empty means memory only
	gen      *ids.Generator
	rooms    map[string]*roomRecord
	messages map[string][]messageRecord
}

// roomRecord is the persisted form of a room. Timestamps are epoch
// milliseconds; lastMessageAt is omitted while the room is empty.
type roomRecord struct {
	Code          string `json:"code"`
	Name          string `json:"name,omitempty"`
	Suspended     bool   `json:"suspended"`
	CreatedAt     int64  `json:"createdAt"`
	LastMessageAt *int64 `json:"lastMessageAt,omitempty"`
	MessageCount  int    `json:"messageCount"`
}

type messageRecord struct {
	ID        string `json:"id"`
	RoomCode  string `json:"roomCode"`
	Nickname  string `json:"nickname"`
	Text      string `json:"text"`
	IsSystem  bool   `json:"isSystem"`
	CreatedAt int64  `json:"createdAt"`
}

type document struct {
	Rooms    map[string]*roomRecord     `json:"rooms"`
	Messages map[string][]messageRecord `json:"messages"`
}

// New loads the snapshot at path, or starts empty when the file does not
// exist. An empty path keeps all state in memory (no persistence).
func New(path string) (*Store, error) {
	s := &Store{
		path:     path,
		gen:      ids.NewGenerator(0),
		rooms:    make(map[string]*roomRecord),
		messages: make(map[string][]messageRecord),
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Rooms != nil {
		s.rooms = doc.Rooms
	}
	if doc.Messages != nil {
		s.messages = doc.Messages
	}

	// Stored order is authoritative for equal stamps; the stable sort keeps
	// insertion order for ties.
	for code := range s.messages {
		msgs := s.messages[code]
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].CreatedAt < msgs[j].CreatedAt
		})
		for _, m := range msgs {
			s.gen.Observe(m.CreatedAt)
		}
	}
	for _, r := range s.rooms {
		s.gen.Observe(r.CreatedAt)
	}

	return s, nil
}

// Close persists the current state one final time.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// EnsureRoom creates the room if absent, otherwise updates the name when a
// non-empty one is given.
func (s *Store) EnsureRoom(_ context.Context, code, name string) (*store.Room, error) {
	code = store.NormalizeCode(code)
	name = store.TruncateName(name, store.MaxRoomNameLen)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		room = &roomRecord{
			Code:      code,
			Name:      name,
			CreatedAt: s.gen.NextTimestamp().UnixMilli(),
		}
		s.rooms[code] = room
		if err := s.persistLocked(); err != nil {
			delete(s.rooms, code)
			return nil, err
		}
		return room.toRoom(), nil
	}

	prevName := room.Name
	if name != "" {
		room.Name = name
	}
	if err := s.persistLocked(); err != nil {
		room.Name = prevName
		return nil, err
	}
	return room.toRoom(), nil
}

// GetRoom retrieves room metadata by code.
func (s *Store) GetRoom(_ context.Context, code string) (*store.Room, error) {
	code = store.NormalizeCode(code)

	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	return room.toRoom(), nil
}

// RenameRoom updates the display name, truncated to the room name limit.
func (s *Store) RenameRoom(_ context.Context, code, name string) (*store.Room, error) {
	code = store.NormalizeCode(code)
	name = store.TruncateName(name, store.MaxRoomNameLen)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	prevName := room.Name
	room.Name = name

	if err := s.persistLocked(); err != nil {
		room.Name = prevName
		return nil, err
	}
	return room.toRoom(), nil
}

// SetSuspended toggles the suspension flag.
func (s *Store) SetSuspended(_ context.Context, code string, suspended bool) (*store.Room, error) {
	code = store.NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	prevSuspended := room.Suspended
	room.Suspended = suspended

	if err := s.persistLocked(); err != nil {
		room.Suspended = prevSuspended
		return nil, err
	}
	return room.toRoom(), nil
}

// ListRooms returns all rooms, most recently active first.
func (s *Store) ListRooms(_ context.Context) ([]*store.Room, error) {
	s.mu.RLock()
	rooms := make([]*store.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r.toRoom())
	}
	s.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		ai, aj := activityStamp(rooms[i]), activityStamp(rooms[j])
		if ai != aj {
			return ai > aj
		}
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})

	return rooms, nil
}

// DeleteRoom removes the room and all of its messages.
func (s *Store) DeleteRoom(_ context.Context, code string) (bool, error) {
	code = store.NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, existed := s.rooms[code]
	if !existed {
		return false, nil
	}
	msgs := s.messages[code]
	delete(s.rooms, code)
	delete(s.messages, code)

	if err := s.persistLocked(); err != nil {
		s.rooms[code] = room
		if msgs != nil {
			s.messages[code] = msgs
		}
		return false, err
	}
	return true, nil
}

// AppendMessage appends a message and updates the room's counters under one
// critical section.
func (s *Store) AppendMessage(_ context.Context, msg store.NewMessage) (*store.Message, error) {
	code := store.NormalizeCode(msg.RoomCode)
	nickname := store.TruncateName(msg.Nickname, store.MaxNicknameLen)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	if room.Suspended && !msg.IsSystem {
		return nil, store.ErrRoomSuspended
	}

	rec := messageRecord{
		ID:        s.gen.NewMessageID(),
		RoomCode:  code,
		Nickname:  nickname,
		Text:      msg.Text,
		IsSystem:  msg.IsSystem,
		CreatedAt: s.gen.NextTimestamp().UnixMilli(),
	}
	prevMsgs := s.messages[code]
	prevLast := room.LastMessageAt
	s.messages[code] = append(prevMsgs, rec)

	room.MessageCount++
	room.LastMessageAt = &rec.CreatedAt

	// A failed save must not leave a phantom message for later polls.
	if err := s.persistLocked(); err != nil {
		s.messages[code] = prevMsgs
		room.MessageCount--
		room.LastMessageAt = prevLast
		return nil, err
	}
	return rec.toMessage(), nil
}

// ListMessages returns messages strictly after the cursor in ascending order,
// capped from the oldest undelivered message forward.
func (s *Store) ListMessages(_ context.Context, code string, after int64, limit int) ([]*store.Message, error) {
	code = store.NormalizeCode(code)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Message, 0)
	for _, rec := range s.messages[code] {
		if rec.CreatedAt <= after {
			continue
		}
		out = append(out, rec.toMessage())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListRecentMessages returns the newest limit messages in ascending order.
func (s *Store) ListRecentMessages(_ context.Context, code string, limit int) ([]*store.Message, error) {
	code = store.NormalizeCode(code)

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.messages[code]
	start := 0
	if limit > 0 && len(recs) > limit {
		start = len(recs) - limit
	}

	out := make([]*store.Message, 0, len(recs)-start)
	for _, rec := range recs[start:] {
		out = append(out, rec.toMessage())
	}
	return out, nil
}

// ClearMessages deletes every message in the room and resets the counters.
func (s *Store) ClearMessages(_ context.Context, code string) error {
	code = store.NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return store.ErrRoomNotFound
	}

	prevMsgs := s.messages[code]
	prevCount := room.MessageCount
	prevLast := room.LastMessageAt
	s.messages[code] = nil
	room.MessageCount = 0
	room.LastMessageAt = nil

	if err := s.persistLocked(); err != nil {
		s.messages[code] = prevMsgs
		room.MessageCount = prevCount
		room.LastMessageAt = prevLast
		return err
	}
	return nil
}

// persistLocked writes the whole document to a temp file and renames it over
// the snapshot path. Callers must hold the write lock.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}

	doc := document{Rooms: s.rooms, Messages: s.messages}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (r *roomRecord) toRoom() *store.Room {
	room := &store.Room{
		Code:         r.Code,
		Name:         r.Name,
		Suspended:    r.Suspended,
		CreatedAt:    time.UnixMilli(r.CreatedAt),
		MessageCount: r.MessageCount,
	}
	if r.LastMessageAt != nil {
		t := time.UnixMilli(*r.LastMessageAt)
		room.LastMessageAt = &t
	}
	return room
}

func (m messageRecord) toMessage() *store.Message {
	return &store.Message{
		ID:        m.ID,
		RoomCode:  m.RoomCode,
		Nickname:  m.Nickname,
		Text:      m.Text,
		IsSystem:  m.IsSystem,
		CreatedAt: time.UnixMilli(m.CreatedAt),
	}
}

func activityStamp(r *store.Room) int64 {
	if r.LastMessageAt != nil {
		return r.LastMessageAt.UnixMilli()
	}
	return r.CreatedAt.UnixMilli()
}

// Ensure Store implements store.Store
var _ store.Store = (*Store)(nil)
