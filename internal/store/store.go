package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// User represents a registered identity. An identity is independent of live
// connections: a reconnect binds a new session to the same user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Online       bool
	LastSocketID string
	CreatedAt    time.Time
}

// Room represents a named grouping for scoped message delivery. Live
// membership is held by the hub, not persisted.
type Room struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Message represents a persisted chat message. The record is immutable except
// for Reactions (append-only, duplicates allowed) and ReadBy (set semantics).
type Message struct {
	ID        string
	Sender    string
	SenderID  string
	Body      string
	Room      string
	To        string
	IsPrivate bool
	FileURL   string
	Reactions []string
	ReadBy    []string
	CreatedAt time.Time
}

// MessageFilter narrows ListMessages results.
type MessageFilter struct {
	// Search matches as a case-insensitive substring of the message body.
	Search string
	// IncludePrivate includes direct messages in the result set.
	IncludePrivate bool
	// Page and Limit paginate; Page is 1-based. Zero values disable paging.
	Page  int
	Limit int
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a new message. ID and CreatedAt are assigned by
	// the caller before the write.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// AppendReaction appends a reaction symbol to a message and returns the
	// updated record. Duplicate symbols accumulate.
	AppendReaction(ctx context.Context, id, reaction string) (*Message, error)

	// MarkRead adds a reader to a message's read set and returns the updated
	// record. Re-marking is a no-op.
	MarkRead(ctx context.Context, id, reader string) (*Message, error)

	// ListMessages retrieves messages in insertion order.
	ListMessages(ctx context.Context, filter MessageFilter) ([]*Message, error)

	// CountUnread counts messages not yet read by the given reader.
	CountUnread(ctx context.Context, reader string) (int, error)
}

// UserStore handles identity persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpsertOnlineStatus records an identity's online state and last bound
	// session, creating the identity if it does not exist.
	UpsertOnlineStatus(ctx context.Context, username, socketID string, online bool) (*User, error)

	// ListOnline lists identities currently marked online.
	ListOnline(ctx context.Context) ([]*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a new named room.
	CreateRoom(ctx context.Context, name string) (*Room, error)

	// GetRoomByName retrieves a room by name.
	GetRoomByName(ctx context.Context, name string) (*Room, error)

	// ListRooms lists all rooms.
	ListRooms(ctx context.Context) ([]*Room, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore
	UserStore
	RoomStore

	// Close closes the underlying database connection.
	Close() error
}
