package store

import (
	"context"
	"strings"
	"time"
)

// SystemNickname is the reserved sender name attached to administrative
// notices. The transport layer rejects user nicknames that match it.
const SystemNickname = "SERVER"

// Field limits enforced on stored data. Text length is validated at the
// boundary; nickname and room name are truncated here so no backend can
// persist an oversized value.
const (
	MaxTextLen     = 200
	MaxNicknameLen = 20
	MaxRoomNameLen = 40
)

// Room is a named chat channel identified by a unique code.
// MessageCount and LastMessageAt are denormalized and kept consistent with
// the message log by every append and clear.
type Room struct {
	Code          string
	Name          string
	Suspended     bool
	CreatedAt     time.Time
	LastMessageAt *time.Time
	MessageCount  int
}

// Message is a single chat entry. IsSystem marks administrative notices;
// user-authored messages always carry IsSystem=false.
type Message struct {
	ID        string
	RoomCode  string
	Nickname  string
	Text      string
	IsSystem  bool
	CreatedAt time.Time
}

// NewMessage carries the caller-supplied fields of an append. The store
// assigns ID and CreatedAt.
type NewMessage struct {
	RoomCode string
	Nickname string
	Text     string
	IsSystem bool
}

// NormalizeCode canonicalizes a room code: trimmed and uppercased.
// An empty result is invalid input and must be rejected before any store call.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// TruncateName clips a display string to max runes.
func TruncateName(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}

// Store is the contract for room and message persistence. Implementations
// must be safe for concurrent use; mutating operations on the same room
// serialize so counters never drift from the message log.
type Store interface {
	// EnsureRoom creates the room if absent, otherwise updates its name when
	// a non-empty name is given. Idempotent: repeat calls keep CreatedAt.
	EnsureRoom(ctx context.Context, code, name string) (*Room, error)

	// GetRoom returns room metadata. The message count is never stale.
	// Returns ErrRoomNotFound when no room has the code.
	GetRoom(ctx context.Context, code string) (*Room, error)

	// RenameRoom updates the display name, truncated to MaxRoomNameLen runes.
	RenameRoom(ctx context.Context, code, name string) (*Room, error)

	// SetSuspended toggles the suspension flag.
	SetSuspended(ctx context.Context, code string, suspended bool) (*Room, error)

	// ListRooms returns all rooms, most recently active first: descending by
	// LastMessageAt when present else CreatedAt, ties by CreatedAt descending.
	ListRooms(ctx context.Context) ([]*Room, error)

	// DeleteRoom removes the room and all its messages. Reports whether a
	// room existed.
	DeleteRoom(ctx context.Context, code string) (bool, error)

	// AppendMessage appends to the room's log, assigning a fresh id and a
	// creation timestamp strictly after every previously assigned one, and
	// atomically updates the room's MessageCount and LastMessageAt.
	// Returns ErrRoomNotFound when the room is absent and ErrRoomSuspended
	// when a user message targets a suspended room (system messages pass).
	AppendMessage(ctx context.Context, msg NewMessage) (*Message, error)

	// ListMessages returns messages with CreatedAt strictly after the cursor
	// (milliseconds since epoch; 0 means from the beginning) in ascending
	// order. limit > 0 caps from the oldest undelivered message forward so
	// pollers never skip entries. Unknown rooms yield an empty slice.
	ListMessages(ctx context.Context, code string, after int64, limit int) ([]*Message, error)

	// ListRecentMessages returns the newest limit messages in ascending
	// order. Intended for a client's initial load, before cursor polling.
	ListRecentMessages(ctx context.Context, code string, limit int) ([]*Message, error)

	// ClearMessages deletes every message in the room and resets
	// MessageCount to 0 and LastMessageAt to nil. Atomic with respect to
	// concurrent appends.
	ClearMessages(ctx context.Context, code string) error

	// Close releases the underlying backend.
	Close() error
}
