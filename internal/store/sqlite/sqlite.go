package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relaychat/relaychat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	username       TEXT NOT NULL UNIQUE,
	password_hash  TEXT NOT NULL DEFAULT '',
	online         BOOLEAN NOT NULL DEFAULT 0,
	last_socket_id TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	sender     TEXT NOT NULL,
	sender_id  TEXT NOT NULL,
	body       TEXT NOT NULL,
	room       TEXT NOT NULL DEFAULT '',
	recipient  TEXT NOT NULL DEFAULT '',
	is_private BOOLEAN NOT NULL DEFAULT 0,
	file_url   TEXT NOT NULL DEFAULT '',
	reactions  TEXT NOT NULL DEFAULT '[]',
	read_by    TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply an alternate schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// CreateMessage persists a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	reactions, err := json.Marshal(emptyIfNil(msg.Reactions))
	if err != nil {
		return fmt.Errorf("marshal reactions: %w", err)
	}
	readBy, err := json.Marshal(emptyIfNil(msg.ReadBy))
	if err != nil {
		return fmt.Errorf("marshal read_by: %w", err)
	}

	query := `
		INSERT INTO messages (id, sender, sender_id, body, room, recipient, is_private, file_url, reactions, read_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		msg.ID, msg.Sender, msg.SenderID, msg.Body, msg.Room, msg.To,
		msg.IsPrivate, msg.FileURL, string(reactions), string(readBy), msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := `
		SELECT id, sender, sender_id, body, room, recipient, is_private, file_url, reactions, read_by, created_at
		FROM messages
		WHERE id = ?
	`
	return scanMessage(s.db.QueryRowContext(ctx, query, id))
}

// AppendReaction appends a reaction symbol to a message inside a transaction
// and returns the updated record. Duplicates accumulate.
func (s *SQLiteStore) AppendReaction(ctx context.Context, id, reaction string) (*store.Message, error) {
	return s.mutateMessage(ctx, id, func(msg *store.Message) bool {
		msg.Reactions = append(msg.Reactions, reaction)
		return true
	})
}

// MarkRead inserts a reader into a message's read set. Re-marking is a no-op.
func (s *SQLiteStore) MarkRead(ctx context.Context, id, reader string) (*store.Message, error) {
	return s.mutateMessage(ctx, id, func(msg *store.Message) bool {
		for _, r := range msg.ReadBy {
			if r == reader {
				return false
			}
		}
		msg.ReadBy = append(msg.ReadBy, reader)
		return true
	})
}

// mutateMessage applies a read-modify-write on the two mutable message
// columns. mutate returns false to skip the write.
func (s *SQLiteStore) mutateMessage(ctx context.Context, id string, mutate func(*store.Message) bool) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, sender, sender_id, body, room, recipient, is_private, file_url, reactions, read_by, created_at
		FROM messages
		WHERE id = ?
	`
	msg, err := scanMessage(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if !mutate(msg) {
		return msg, nil
	}

	reactions, err := json.Marshal(emptyIfNil(msg.Reactions))
	if err != nil {
		return nil, fmt.Errorf("marshal reactions: %w", err)
	}
	readBy, err := json.Marshal(emptyIfNil(msg.ReadBy))
	if err != nil {
		return nil, fmt.Errorf("marshal read_by: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET reactions = ?, read_by = ? WHERE id = ?`,
		string(reactions), string(readBy), id,
	); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

// ListMessages retrieves messages in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, filter store.MessageFilter) ([]*store.Message, error) {
	var (
		conds []string
		args  []any
	)
	if !filter.IncludePrivate {
		conds = append(conds, "is_private = 0")
	}
	if filter.Search != "" {
		// SQLite LIKE is case-insensitive for ASCII.
		conds = append(conds, "body LIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}

	query := `
		SELECT id, sender, sender_id, body, room, recipient, is_private, file_url, reactions, read_by, created_at
		FROM messages
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Page > 1 {
			query += " OFFSET ?"
			args = append(args, (filter.Page-1)*filter.Limit)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*store.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// CountUnread counts messages whose read set does not include the reader.
// The read set is a JSON column, so membership is checked after scanning.
func (s *SQLiteStore) CountUnread(ctx context.Context, reader string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT read_by FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("query read sets: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return 0, fmt.Errorf("scan read set: %w", err)
		}
		var readBy []string
		if err := json.Unmarshal([]byte(raw), &readBy); err != nil {
			return 0, fmt.Errorf("unmarshal read set: %w", err)
		}
		read := false
		for _, r := range readBy {
			if r == reader {
				read = true
				break
			}
		}
		if !read {
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate read sets: %w", err)
	}
	return count, nil
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, online, last_socket_id, created_at
		FROM users
		WHERE username = ?
	`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// UpsertOnlineStatus records an identity's online state and last bound
// session, creating the identity row if needed.
func (s *SQLiteStore) UpsertOnlineStatus(ctx context.Context, username, socketID string, online bool) (*store.User, error) {
	query := `
		INSERT INTO users (username, online, last_socket_id)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			online = excluded.online,
			last_socket_id = excluded.last_socket_id
	`
	if _, err := s.db.ExecContext(ctx, query, username, online, socketID); err != nil {
		return nil, fmt.Errorf("upsert online status: %w", err)
	}
	return s.GetUserByUsername(ctx, username)
}

// ListOnline lists identities currently marked online.
func (s *SQLiteStore) ListOnline(ctx context.Context) ([]*store.User, error) {
	query := `
		SELECT id, username, password_hash, online, last_socket_id, created_at
		FROM users
		WHERE online = 1
		ORDER BY username ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query online users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate online users: %w", err)
	}
	return users, nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a new named room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string) (*store.Room, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO rooms (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return s.GetRoomByName(ctx, name)
}

// GetRoomByName retrieves a room by name.
func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM rooms WHERE name = ?`, name)
	var room store.Room
	if err := row.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &room, nil
}

// ListRooms lists all rooms.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM rooms ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*store.Room, 0)
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// ==== helpers ====

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg       store.Message
		reactions string
		readBy    string
	)
	err := row.Scan(
		&msg.ID, &msg.Sender, &msg.SenderID, &msg.Body, &msg.Room, &msg.To,
		&msg.IsPrivate, &msg.FileURL, &reactions, &readBy, &msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if err := json.Unmarshal([]byte(reactions), &msg.Reactions); err != nil {
		return nil, fmt.Errorf("unmarshal reactions: %w", err)
	}
	if err := json.Unmarshal([]byte(readBy), &msg.ReadBy); err != nil {
		return nil, fmt.Errorf("unmarshal read_by: %w", err)
	}
	return &msg, nil
}

func scanUser(row rowScanner) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Online, &u.LastSocketID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
