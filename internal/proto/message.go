package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeUserJoin         = "user_join"
	InboundTypeJoinRoom         = "join_room"
	InboundTypeLeaveRoom        = "leave_room"
	InboundTypeSendMessage      = "send_message"
	InboundTypeTyping           = "typing"
	InboundTypePrivateMessage   = "private_message"
	InboundTypeSendFile         = "send_file"
	InboundTypeReactMessage     = "react_message"
	InboundTypeReadMessage      = "read_message"
	InboundTypeMessageDelivered = "message_delivered"
	InboundTypeGetUnreadCount   = "get_unread_count"
	InboundTypeSearchMessages   = "search_messages"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// UserJoinData binds a username to the connection.
type UserJoinData struct {
	Username string `json:"username"`
}

// RoomData names a room to join or leave.
type RoomData struct {
	Room string `json:"room"`
}

// SendMessageData is a broadcast or room-scoped chat message.
type SendMessageData struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}

// TypingData toggles the typing indicator.
type TypingData struct {
	IsTyping bool `json:"isTyping"`
}

// PrivateMessageData is a direct message to one identity or session.
type PrivateMessageData struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// SendFileData shares an already-uploaded file.
type SendFileData struct {
	FileName  string `json:"fileName"`
	FileURL   string `json:"fileUrl"`
	To        string `json:"to,omitempty"`
	IsPrivate bool   `json:"isPrivate,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
}

// ReactMessageData appends a reaction to a message.
type ReactMessageData struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

// ReadMessageData records a read receipt.
type ReadMessageData struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// MessageDeliveredData acknowledges delivery.
type MessageDeliveredData struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// UnreadCountData asks for the unread count of one reader.
type UnreadCountData struct {
	UserID string `json:"userId"`
}

// SearchMessagesData queries message history.
type SearchMessagesData struct {
	Query string `json:"query"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Outbound event names.
const (
	EventUserList         = "user_list"
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
	EventReceiveMessage   = "receive_message"
	EventPrivateMessage   = "private_message"
	EventReceiveFile      = "receive_file"
	EventTypingUsers      = "typing_users"
	EventMessageReacted   = "message_reacted"
	EventMessageRead      = "message_read"
	EventMessageDelivered = "message_delivered"
	EventUnreadCount      = "unread_count"
	EventSearchResults    = "search_results"
)

// UserEntry is one entry in the online-user list.
type UserEntry struct {
	Username string `json:"username"`
	ID       string `json:"id"`
}

// PresenceEvent notifies that a user joined or left.
type PresenceEvent struct {
	Username string `json:"username"`
	ID       string `json:"id"`
}

// MessageEvent is the wire form of a chat message.
type MessageEvent struct {
	ID        string   `json:"id"`
	Sender    string   `json:"sender"`
	SenderID  string   `json:"senderId"`
	Message   string   `json:"message"`
	RoomID    string   `json:"roomId,omitempty"`
	To        string   `json:"to,omitempty"`
	IsPrivate bool     `json:"isPrivate"`
	FileURL   string   `json:"fileUrl,omitempty"`
	Reactions []string `json:"reactions"`
	ReadBy    []string `json:"readBy"`
	Timestamp string   `json:"timestamp"`
}

// DeliveredEvent relays a delivery acknowledgment.
type DeliveredEvent struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
