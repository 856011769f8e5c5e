package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"roomchat/internal/ids"
	"roomchat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	code               TEXT PRIMARY KEY,
	name               TEXT NOT NULL DEFAULT '',
	suspended          INTEGER NOT NULL DEFAULT 0,
	created_at_ms      INTEGER NOT NULL,
	last_message_at_ms INTEGER,
	message_count      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	room_code     TEXT NOT NULL REFERENCES rooms(code) ON DELETE CASCADE,
	nickname      TEXT NOT NULL,
	text          TEXT NOT NULL,
	is_system     INTEGER NOT NULL DEFAULT 0,
	created_at_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_code, created_at_ms, seq);
`

// SQLiteStore implements store.Store on a SQLite database.
// The single connection plus per-operation transactions serialize mutating
// operations, which keeps message_count consistent with the log.
type SQLiteStore struct {
	db  *sql.DB
	gen *ids.Generator
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	// Seed the stamp floor so cursors from a previous run stay in the past.
	var floor int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(created_at_ms), 0) FROM messages`).Scan(&floor); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed timestamp floor: %w", err)
	}

	return &SQLiteStore{db: db, gen: ids.NewGenerator(floor)}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureRoom creates the room if absent, otherwise updates the name when a
// non-empty one is given.
func (s *SQLiteStore) EnsureRoom(ctx context.Context, code, name string) (*store.Room, error) {
	code = store.NormalizeCode(code)
	name = store.TruncateName(name, store.MaxRoomNameLen)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE code = ?`, code).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created := s.gen.NextTimestamp().UnixMilli()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rooms (code, name, suspended, created_at_ms, message_count)
			VALUES (?, ?, 0, ?, 0)
		`, code, name, created)
		if err != nil {
			return nil, fmt.Errorf("insert room: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("query room: %w", err)
	default:
		if name != "" {
			if _, err := tx.ExecContext(ctx, `UPDATE rooms SET name = ? WHERE code = ?`, name, code); err != nil {
				return nil, fmt.Errorf("update room name: %w", err)
			}
		}
	}

	// Read back inside the transaction so a concurrent delete cannot make a
	// successful write report not-found.
	room, err := s.getRoomTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return room, nil
}

// GetRoom retrieves room metadata by code.
func (s *SQLiteStore) GetRoom(ctx context.Context, code string) (*store.Room, error) {
	code = store.NormalizeCode(code)
	room, err := scanRoom(s.db.QueryRowContext(ctx, `
		SELECT code, name, suspended, created_at_ms, last_message_at_ms, message_count
		FROM rooms
		WHERE code = ?
	`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

func (s *SQLiteStore) getRoomTx(ctx context.Context, tx *sql.Tx, code string) (*store.Room, error) {
	room, err := scanRoom(tx.QueryRowContext(ctx, `
		SELECT code, name, suspended, created_at_ms, last_message_at_ms, message_count
		FROM rooms
		WHERE code = ?
	`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// RenameRoom updates the display name, truncated to the room name limit.
func (s *SQLiteStore) RenameRoom(ctx context.Context, code, name string) (*store.Room, error) {
	code = store.NormalizeCode(code)
	name = store.TruncateName(name, store.MaxRoomNameLen)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `UPDATE rooms SET name = ? WHERE code = ?`, name, code)
	if err != nil {
		return nil, fmt.Errorf("update room name: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, store.ErrRoomNotFound
	}

	room, err := s.getRoomTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return room, nil
}

// SetSuspended toggles the suspension flag.
func (s *SQLiteStore) SetSuspended(ctx context.Context, code string, suspended bool) (*store.Room, error) {
	code = store.NormalizeCode(code)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `UPDATE rooms SET suspended = ? WHERE code = ?`, boolToInt(suspended), code)
	if err != nil {
		return nil, fmt.Errorf("update room suspension: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, store.ErrRoomNotFound
	}

	room, err := s.getRoomTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return room, nil
}

// ListRooms returns all rooms, most recently active first.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, suspended, created_at_ms, last_message_at_ms, message_count
		FROM rooms
		ORDER BY COALESCE(last_message_at_ms, created_at_ms) DESC, created_at_ms DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// DeleteRoom removes the room; its messages cascade.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, code string) (bool, error) {
	code = store.NormalizeCode(code)

	result, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE code = ?`, code)
	if err != nil {
		return false, fmt.Errorf("delete room: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rows > 0, nil
}

// AppendMessage appends a message and updates the room's counters in one
// transaction.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg store.NewMessage) (*store.Message, error) {
	code := store.NormalizeCode(msg.RoomCode)
	nickname := store.TruncateName(msg.Nickname, store.MaxNicknameLen)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var suspended int
	err = tx.QueryRowContext(ctx, `SELECT suspended FROM rooms WHERE code = ?`, code).Scan(&suspended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	if suspended != 0 && !msg.IsSystem {
		return nil, store.ErrRoomSuspended
	}

	created := s.gen.NextTimestamp()
	stored := &store.Message{
		ID:        s.gen.NewMessageID(),
		RoomCode:  code,
		Nickname:  nickname,
		Text:      msg.Text,
		IsSystem:  msg.IsSystem,
		CreatedAt: created,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, room_code, nickname, text, is_system, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, stored.ID, stored.RoomCode, stored.Nickname, stored.Text, boolToInt(stored.IsSystem), created.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rooms
		SET message_count = message_count + 1, last_message_at_ms = ?
		WHERE code = ?
	`, created.UnixMilli(), code)
	if err != nil {
		return nil, fmt.Errorf("update room counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return stored, nil
}

// ListMessages returns messages strictly after the cursor in ascending order,
// capped from the oldest undelivered message forward.
func (s *SQLiteStore) ListMessages(ctx context.Context, code string, after int64, limit int) ([]*store.Message, error) {
	code = store.NormalizeCode(code)
	if limit <= 0 {
		limit = -1 // no cap
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_code, nickname, text, is_system, created_at_ms
		FROM messages
		WHERE room_code = ? AND created_at_ms > ?
		ORDER BY created_at_ms ASC, seq ASC
		LIMIT ?
	`, code, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

// ListRecentMessages returns the newest limit messages in ascending order.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, code string, limit int) ([]*store.Message, error) {
	code = store.NormalizeCode(code)
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_code, nickname, text, is_system, created_at_ms
		FROM messages
		WHERE room_code = ?
		ORDER BY created_at_ms DESC, seq DESC
		LIMIT ?
	`, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ClearMessages deletes every message in the room and resets the counters.
func (s *SQLiteStore) ClearMessages(ctx context.Context, code string) error {
	code = store.NormalizeCode(code)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE code = ?`, code).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrRoomNotFound
		}
		return fmt.Errorf("query room: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE room_code = ?`, code); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE rooms SET message_count = 0, last_message_at_ms = NULL WHERE code = ?
	`, code); err != nil {
		return fmt.Errorf("reset room counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*store.Room, error) {
	var (
		room      store.Room
		suspended int
		createdMs int64
		lastMs    sql.NullInt64
	)
	if err := row.Scan(&room.Code, &room.Name, &suspended, &createdMs, &lastMs, &room.MessageCount); err != nil {
		return nil, err
	}
	room.Suspended = suspended != 0
	room.CreatedAt = time.UnixMilli(createdMs)
	if lastMs.Valid {
		t := time.UnixMilli(lastMs.Int64)
		room.LastMessageAt = &t
	}
	return &room, nil
}

func collectMessages(rows *sql.Rows) ([]*store.Message, error) {
	messages := make([]*store.Message, 0)
	for rows.Next() {
		var (
			msg       store.Message
			isSystem  int
			createdMs int64
		)
		if err := rows.Scan(&msg.ID, &msg.RoomCode, &msg.Nickname, &msg.Text, &isSystem, &createdMs); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.IsSystem = isSystem != 0
		msg.CreatedAt = time.UnixMilli(createdMs)
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
