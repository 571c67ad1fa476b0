package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin binds an identity to the session.
	CommandJoin CommandKind = iota
	// CommandJoinRoom subscribes the session to a room.
	CommandJoinRoom
	// CommandLeaveRoom unsubscribes the session from a room.
	CommandLeaveRoom
	// CommandSendMessage delivers a chat message, broadcast or room-scoped.
	CommandSendMessage
	// CommandTyping toggles the session's typing indicator.
	CommandTyping
	// CommandPrivateMessage delivers a direct message to one identity.
	CommandPrivateMessage
	// CommandSendFile shares an already-uploaded file as a message.
	CommandSendFile
	// CommandReactMessage appends a reaction to an existing message.
	CommandReactMessage
	// CommandReadMessage records a read receipt on an existing message.
	CommandReadMessage
	// CommandMessageDelivered acknowledges delivery of a message.
	CommandMessageDelivered
	// CommandUnreadCount asks for the requester's unread message count.
	CommandUnreadCount
	// CommandSearchMessages queries message history by substring.
	CommandSearchMessages
)

// Command represents an action requested by a client. Only the fields
// relevant to the Kind are set.
type Command struct {
	Kind CommandKind

	Username  string // CommandJoin
	Room      string // room commands and room-scoped sends
	Body      string // message text
	To        string // direct target: session ID or username
	IsTyping  bool   // CommandTyping
	FileName  string // CommandSendFile
	FileURL   string // CommandSendFile
	IsPrivate bool   // CommandSendFile
	MessageID string // reaction / read / delivery commands
	Reaction  string // CommandReactMessage, free-form symbol
	Reader    string // CommandReadMessage, CommandMessageDelivered, CommandUnreadCount
	Query     string // CommandSearchMessages
}
