package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/metrics"
	"github.com/relaychat/relaychat-server/internal/store"
)

// AnonymousSender is the fallback sender name for unidentified sessions.
const AnonymousSender = "Anonymous"

// IdentityStore is the slice of identity persistence the hub calls.
type IdentityStore interface {
	// UpsertOnlineStatus records an identity's online state and last bound
	// session, creating the identity if it does not exist.
	UpsertOnlineStatus(ctx context.Context, username, socketID string, online bool) (*store.User, error)
}

// Hub routes inbound commands: it validates, mutates session state, decides
// the recipient set and fans the resulting event out. It owns the only
// mutable shared state in the process (registry, room index, typing set),
// serialized by a single lock. Every registry and index mutation is one
// atomic step under the lock; the lock is never held across a collaborator
// call, so a slow persistence write stalls only its own event's fanout.
//
// Recipient sets are snapshotted at dispatch time, persistence happens next,
// and the broadcast happens last. An event describing a state change that did
// not durably happen is never fanned out.
type Hub struct {
	registry *Registry
	rooms    *RoomIndex
	typing   *TypingTracker

	lifecycle *Lifecycle
	messages  store.MessageStore
	identity  IdentityStore

	log     *zerolog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
}

// NewHub constructs the router around the given state owners and
// collaborators.
func NewHub(registry *Registry, rooms *RoomIndex, typing *TypingTracker, messages store.MessageStore, identity IdentityStore, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		registry:  registry,
		rooms:     rooms,
		typing:    typing,
		lifecycle: NewLifecycle(messages),
		messages:  messages,
		identity:  identity,
		log:       logger,
	}
	return h
}

// SetMetrics attaches prometheus collectors. Optional; a nil hub metrics
// field disables instrumentation.
func (h *Hub) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// Connect allocates a new anonymous session and registers it. No side
// effects beyond allocation; presence changes only on Join.
func (h *Hub) Connect() *Session {
	s := NewSession()
	h.mu.Lock()
	h.registry.Add(s)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ConnectedSessions.Inc()
	}
	h.log.Debug().Str("session_id", s.ID).Msg("session connected")
	return s
}

// Lookup retrieves a live session by ID.
func (h *Hub) Lookup(id string) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.registry.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Disconnect tears a session down: removes it from every room, clears its
// typing state, marks the identity offline when no other live session shares
// it, and broadcasts the final presence and typing updates. Idempotent and
// safe for sessions that never identified.
func (h *Hub) Disconnect(ctx context.Context, s *Session) {
	h.mu.Lock()
	if !h.registry.Remove(s.ID) {
		h.mu.Unlock()
		return
	}
	h.rooms.LeaveAll(s)
	h.typing.Remove(s)
	username := s.Username
	lastForIdentity := username != "" && !h.registry.SharesIdentity(username, s.ID)
	users := h.registry.OnlineUsers()
	typing := h.typing.Usernames()
	targets := h.registry.All()
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectedSessions.Dec()
	}

	if lastForIdentity {
		if _, err := h.identity.UpsertOnlineStatus(ctx, username, s.ID, false); err != nil {
			// Registry state is already clean; the presence broadcast below
			// reflects live connections, not the stale store row.
			h.log.Error().Err(err).Str("username", username).Msg("mark identity offline")
		}
	}

	if username != "" {
		h.broadcast(targets, &Event{Kind: EventUserLeft, User: username, SessionID: s.ID})
		h.log.Info().Str("username", username).Str("session_id", s.ID).Msg("user left")
	}
	h.broadcast(targets, &Event{Kind: EventUserList, Users: users})
	h.broadcast(targets, &Event{Kind: EventTypingUsers, Typing: typing})
}

// Dispatch is the single entry point for inbound events. Each command kind
// maps to one handler; errors are contained per event and never cross
// sessions.
func (h *Hub) Dispatch(ctx context.Context, s *Session, cmd *Command) {
	if h.metrics != nil {
		h.metrics.InboundEvents.WithLabelValues(kindLabel(cmd.Kind)).Inc()
	}
	switch cmd.Kind {
	case CommandJoin:
		h.handleJoin(ctx, s, cmd)
	case CommandJoinRoom:
		h.handleJoinRoom(s, cmd)
	case CommandLeaveRoom:
		h.handleLeaveRoom(s, cmd)
	case CommandSendMessage:
		h.handleSendMessage(ctx, s, cmd)
	case CommandTyping:
		h.handleTyping(s, cmd)
	case CommandPrivateMessage:
		h.handlePrivateMessage(ctx, s, cmd)
	case CommandSendFile:
		h.handleSendFile(ctx, s, cmd)
	case CommandReactMessage:
		h.handleReactMessage(ctx, s, cmd)
	case CommandReadMessage:
		h.handleReadMessage(ctx, s, cmd)
	case CommandMessageDelivered:
		h.handleMessageDelivered(s, cmd)
	case CommandUnreadCount:
		h.handleUnreadCount(ctx, s, cmd)
	case CommandSearchMessages:
		h.handleSearchMessages(ctx, s, cmd)
	default:
		h.sendError(s, ErrCodeBadRequest, "unknown command")
	}
}

func (h *Hub) handleJoin(ctx context.Context, s *Session, cmd *Command) {
	username := strings.TrimSpace(cmd.Username)
	if username == "" {
		h.sendError(s, ErrCodeBadRequest, "username is required")
		return
	}

	h.mu.Lock()
	err := h.registry.Bind(s.ID, username)
	h.mu.Unlock()
	if err != nil {
		// Rejected, no fanout. The originator gets no failure event here.
		h.log.Warn().Err(err).Str("session_id", s.ID).Str("username", username).Msg("identity bind rejected")
		return
	}

	if _, err := h.identity.UpsertOnlineStatus(ctx, username, s.ID, true); err != nil {
		h.log.Error().Err(persistenceError("upsert online status", err)).Str("username", username).Msg("join not durable, fanout skipped")
		return
	}

	h.mu.Lock()
	users := h.registry.OnlineUsers()
	targets := h.registry.All()
	h.mu.Unlock()

	h.broadcast(targets, &Event{Kind: EventUserList, Users: users})
	h.broadcast(targets, &Event{Kind: EventUserJoined, User: username, SessionID: s.ID})
	h.log.Info().Str("username", username).Str("session_id", s.ID).Msg("user joined")
}

func (h *Hub) handleJoinRoom(s *Session, cmd *Command) {
	if cmd.Room == "" {
		h.sendError(s, ErrCodeBadRequest, "room is required")
		return
	}
	h.mu.Lock()
	if _, ok := h.registry.Get(s.ID); !ok {
		h.mu.Unlock()
		h.log.Warn().Str("session_id", s.ID).Msg("join room for unknown session")
		return
	}
	h.rooms.Join(s, cmd.Room)
	h.mu.Unlock()
	h.log.Debug().Str("session_id", s.ID).Str("room", cmd.Room).Msg("joined room")
}

func (h *Hub) handleLeaveRoom(s *Session, cmd *Command) {
	if cmd.Room == "" {
		h.sendError(s, ErrCodeBadRequest, "room is required")
		return
	}
	h.mu.Lock()
	h.rooms.Leave(s, cmd.Room)
	h.mu.Unlock()
	h.log.Debug().Str("session_id", s.ID).Str("room", cmd.Room).Msg("left room")
}

func (h *Hub) handleSendMessage(ctx context.Context, s *Session, cmd *Command) {
	h.mu.Lock()
	sender := s.Username
	var targets []*Session
	if cmd.Room != "" {
		// Unknown room resolves to an empty fanout, not an error.
		targets = h.rooms.MembersOf(cmd.Room)
	} else {
		targets = h.registry.All()
	}
	h.mu.Unlock()

	if sender == "" {
		sender = AnonymousSender
	}
	msg := &store.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		SenderID:  s.ID,
		Body:      cmd.Body,
		Room:      cmd.Room,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.messages.CreateMessage(ctx, msg); err != nil {
		h.log.Error().Err(persistenceError("create message", err)).Str("session_id", s.ID).Msg("message not persisted, fanout skipped")
		return
	}
	h.broadcast(targets, &Event{Kind: EventReceiveMessage, Message: msg})
}

func (h *Hub) handleTyping(s *Session, cmd *Command) {
	h.mu.Lock()
	if !s.Identified() {
		h.mu.Unlock()
		return
	}
	h.typing.Set(s, cmd.IsTyping)
	typing := h.typing.Usernames()
	targets := h.registry.All()
	h.mu.Unlock()

	h.broadcast(targets, &Event{Kind: EventTypingUsers, Typing: typing})
}

func (h *Hub) handlePrivateMessage(ctx context.Context, s *Session, cmd *Command) {
	if cmd.To == "" {
		h.sendError(s, ErrCodeBadRequest, "target is required")
		return
	}

	h.mu.Lock()
	sender := s.Username
	targets := h.resolveTarget(s, cmd.To)
	h.mu.Unlock()

	if sender == "" {
		sender = AnonymousSender
	}
	msg := &store.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		SenderID:  s.ID,
		Body:      cmd.Body,
		To:        cmd.To,
		IsPrivate: true,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.messages.CreateMessage(ctx, msg); err != nil {
		h.log.Error().Err(persistenceError("create message", err)).Str("session_id", s.ID).Msg("private message not persisted, fanout skipped")
		return
	}
	if targets == nil {
		// Target offline: the message is durable but delivery is skipped.
		h.log.Debug().Str("to", cmd.To).Str("session_id", s.ID).Msg("private message target unresolvable, delivery skipped")
		return
	}
	h.broadcast(targets, &Event{Kind: EventPrivateMessage, Message: msg})
}

func (h *Hub) handleSendFile(ctx context.Context, s *Session, cmd *Command) {
	// The upload collaborator already produced the attachment URL; the
	// router only persists and routes.
	h.mu.Lock()
	sender := s.Username
	var targets []*Session
	unresolvable := false
	switch {
	case cmd.IsPrivate || cmd.To != "":
		targets = h.resolveTarget(s, cmd.To)
		unresolvable = targets == nil
	case cmd.Room != "":
		targets = h.rooms.MembersOf(cmd.Room)
	default:
		targets = h.registry.All()
	}
	h.mu.Unlock()

	if sender == "" {
		sender = AnonymousSender
	}
	msg := &store.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		SenderID:  s.ID,
		Body:      cmd.FileName,
		Room:      cmd.Room,
		To:        cmd.To,
		IsPrivate: cmd.IsPrivate || cmd.To != "",
		FileURL:   cmd.FileURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.messages.CreateMessage(ctx, msg); err != nil {
		h.log.Error().Err(persistenceError("create message", err)).Str("session_id", s.ID).Msg("file message not persisted, fanout skipped")
		return
	}
	if unresolvable {
		h.log.Debug().Str("to", cmd.To).Str("session_id", s.ID).Msg("file target unresolvable, delivery skipped")
		return
	}
	h.broadcast(targets, &Event{Kind: EventReceiveFile, Message: msg})
}

func (h *Hub) handleReactMessage(ctx context.Context, s *Session, cmd *Command) {
	if cmd.MessageID == "" || cmd.Reaction == "" {
		h.sendError(s, ErrCodeBadRequest, "message id and reaction are required")
		return
	}
	msg, err := h.lifecycle.AddReaction(ctx, cmd.MessageID, cmd.Reaction)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.log.Debug().Str("message_id", cmd.MessageID).Msg("reaction for unknown message")
			return
		}
		h.log.Error().Err(err).Str("message_id", cmd.MessageID).Msg("reaction not persisted, fanout skipped")
		return
	}

	h.mu.Lock()
	targets := h.registry.All()
	h.mu.Unlock()
	h.broadcast(targets, &Event{Kind: EventMessageReacted, Message: msg})
}

func (h *Hub) handleReadMessage(ctx context.Context, s *Session, cmd *Command) {
	reader := cmd.Reader
	if reader == "" {
		reader = s.Username
	}
	if cmd.MessageID == "" || reader == "" {
		h.sendError(s, ErrCodeBadRequest, "message id and reader are required")
		return
	}
	msg, err := h.lifecycle.MarkRead(ctx, cmd.MessageID, reader)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.log.Debug().Str("message_id", cmd.MessageID).Msg("read receipt for unknown message")
			return
		}
		h.log.Error().Err(err).Str("message_id", cmd.MessageID).Msg("read receipt not persisted, fanout skipped")
		return
	}

	h.mu.Lock()
	targets := h.registry.All()
	h.mu.Unlock()
	h.broadcast(targets, &Event{Kind: EventMessageRead, Message: msg})
}

func (h *Hub) handleMessageDelivered(s *Session, cmd *Command) {
	if cmd.MessageID == "" {
		return
	}
	reader := cmd.Reader
	if reader == "" {
		reader = s.Username
	}
	h.mu.Lock()
	targets := h.registry.All()
	h.mu.Unlock()
	h.broadcast(targets, &Event{Kind: EventMessageDelivered, MessageID: cmd.MessageID, Reader: reader})
}

func (h *Hub) handleUnreadCount(ctx context.Context, s *Session, cmd *Command) {
	reader := cmd.Reader
	if reader == "" {
		reader = s.Username
	}
	count, err := h.messages.CountUnread(ctx, reader)
	if err != nil {
		h.log.Error().Err(persistenceError("count unread", err)).Str("session_id", s.ID).Msg("unread count query failed")
		return
	}
	h.send(s, &Event{Kind: EventUnreadCount, Count: count})
}

func (h *Hub) handleSearchMessages(ctx context.Context, s *Session, cmd *Command) {
	msgs, err := h.messages.ListMessages(ctx, store.MessageFilter{Search: cmd.Query})
	if err != nil {
		h.log.Error().Err(persistenceError("search messages", err)).Str("session_id", s.ID).Msg("search query failed")
		return
	}
	h.send(s, &Event{Kind: EventSearchResults, Messages: msgs})
}

// resolveTarget resolves a direct-message target to its recipient set:
// every live session of the target plus the sender's own session. Returns
// nil when no live session matches. Callers hold the hub lock.
func (h *Hub) resolveTarget(sender *Session, to string) []*Session {
	var matched []*Session
	if t, ok := h.registry.Get(to); ok {
		matched = []*Session{t}
	} else {
		matched = h.registry.ByUsername(to)
	}
	if len(matched) == 0 {
		return nil
	}
	targets := matched
	own := false
	for _, t := range matched {
		if t == sender {
			own = true
			break
		}
	}
	if !own {
		targets = append(targets, sender)
	}
	return targets
}

// broadcast delivers one event to the computed recipient set. Sends are
// non-blocking: a slow consumer drops the event rather than stalling the
// fanout for everyone else.
func (h *Hub) broadcast(targets []*Session, ev *Event) {
	for _, s := range targets {
		h.send(s, ev)
	}
}

func (h *Hub) send(s *Session, ev *Event) {
	select {
	case s.Events <- ev:
		if h.metrics != nil {
			h.metrics.FanoutDeliveries.Inc()
		}
	default:
		if h.metrics != nil {
			h.metrics.DroppedEvents.Inc()
		}
		h.log.Warn().Str("session_id", s.ID).Msg("session event channel full, event dropped")
	}
}

func (h *Hub) sendError(s *Session, code, msg string) {
	h.send(s, &Event{Kind: EventError, Error: &CoreError{Code: code, Message: msg}})
}

func kindLabel(kind CommandKind) string {
	switch kind {
	case CommandJoin:
		return "user_join"
	case CommandJoinRoom:
		return "join_room"
	case CommandLeaveRoom:
		return "leave_room"
	case CommandSendMessage:
		return "send_message"
	case CommandTyping:
		return "typing"
	case CommandPrivateMessage:
		return "private_message"
	case CommandSendFile:
		return "send_file"
	case CommandReactMessage:
		return "react_message"
	case CommandReadMessage:
		return "read_message"
	case CommandMessageDelivered:
		return "message_delivered"
	case CommandUnreadCount:
		return "get_unread_count"
	case CommandSearchMessages:
		return "search_messages"
	default:
		return "unknown"
	}
}
