package core

import "github.com/relaychat/relaychat-server/internal/store"

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventUserList carries the full online-user list.
	EventUserList EventKind = iota
	// EventUserJoined notifies that an identity came online.
	EventUserJoined
	// EventUserLeft notifies that an identity's session disconnected.
	EventUserLeft
	// EventReceiveMessage delivers a broadcast or room-scoped message.
	EventReceiveMessage
	// EventPrivateMessage delivers a direct message to sender and target.
	EventPrivateMessage
	// EventReceiveFile delivers a file-attachment message.
	EventReceiveFile
	// EventTypingUsers carries the full list of currently-typing usernames.
	EventTypingUsers
	// EventMessageReacted carries a message after a reaction was appended.
	EventMessageReacted
	// EventMessageRead carries a message after a read receipt was recorded.
	EventMessageRead
	// EventMessageDelivered relays a delivery acknowledgment.
	EventMessageDelivered
	// EventUnreadCount answers an unread-count request.
	EventUnreadCount
	// EventSearchResults answers a message search, requester only.
	EventSearchResults
	// EventError notifies a session about a request-level error.
	EventError
)

// Event is sent to sessions to describe what happened in the system.
type Event struct {
	Kind EventKind

	User      string     // EventUserJoined, EventUserLeft
	SessionID string     // EventUserJoined, EventUserLeft
	Users     []Presence // EventUserList
	Typing    []string   // EventTypingUsers

	Message  *store.Message   // message-bearing events
	Messages []*store.Message // EventSearchResults

	MessageID string // EventMessageDelivered
	Reader    string // EventMessageDelivered
	Count     int    // EventUnreadCount

	Error *CoreError // EventError
}
