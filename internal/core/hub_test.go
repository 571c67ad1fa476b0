package core

import (
	"context"
	"testing"
)

func join(t *testing.T, h *Hub, s *Session, username string) {
	t.Helper()
	h.Dispatch(context.Background(), s, &Command{Kind: CommandJoin, Username: username})
	mustEvent(t, s.Events, EventUserJoined)
	drain(s.Events)
}

func TestJoinBroadcastsUserListAndJoined(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := hub.Connect()
	bob := hub.Connect()

	hub.Dispatch(ctx, alice, &Command{Kind: CommandJoin, Username: "alice"})

	for _, s := range []*Session{alice, bob} {
		list := mustEvent(t, s.Events, EventUserList)
		if len(list.Users) != 1 || list.Users[0].Username != "alice" {
			t.Fatalf("user list = %+v, want single alice entry", list.Users)
		}
		joined := mustEvent(t, s.Events, EventUserJoined)
		if joined.User != "alice" || joined.SessionID != alice.ID {
			t.Fatalf("joined = %+v, want alice/%s", joined, alice.ID)
		}
	}

	if u, ok := st.users["alice"]; !ok || !u.Online {
		t.Fatalf("alice not upserted online: %+v", st.users)
	}
}

func TestJoinRejectsSecondBind(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	s := hub.Connect()
	join(t, hub, s, "alice")

	hub.Dispatch(ctx, s, &Command{Kind: CommandJoin, Username: "eve"})
	mustNoEvent(t, s.Events, EventUserJoined)
	mustNoEvent(t, s.Events, EventUserList)

	if s.Username != "alice" {
		t.Fatalf("username = %q, want alice", s.Username)
	}
}

func TestJoinEmptyUsernameReturnsError(t *testing.T) {
	hub, _ := newTestHub(t)
	s := hub.Connect()

	hub.Dispatch(context.Background(), s, &Command{Kind: CommandJoin, Username: "   "})
	ev := mustEvent(t, s.Events, EventError)
	if ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("error code = %q, want %q", ev.Error.Code, ErrCodeBadRequest)
	}
}

func TestJoinUpsertFailureSkipsFanout(t *testing.T) {
	hub, st := newTestHub(t)
	st.failUpsert = true

	s := hub.Connect()
	other := hub.Connect()
	hub.Dispatch(context.Background(), s, &Command{Kind: CommandJoin, Username: "alice"})

	mustNoEvent(t, s.Events, EventUserJoined)
	mustNoEvent(t, other.Events, EventUserJoined)
	mustNoEvent(t, other.Events, EventUserList)
}

func TestBroadcastDeliversToEveryConnectedSession(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	sessions := make([]*Session, 0, 5)
	for i := 0; i < 5; i++ {
		sessions = append(sessions, hub.Connect())
	}
	join(t, hub, sessions[0], "alice")
	for _, s := range sessions {
		drain(s.Events)
	}

	hub.Dispatch(ctx, sessions[0], &Command{Kind: CommandSendMessage, Body: "hello"})

	for i, s := range sessions {
		ev := mustEvent(t, s.Events, EventReceiveMessage)
		if ev.Message.Body != "hello" || ev.Message.Sender != "alice" {
			t.Fatalf("session %d got %+v", i, ev.Message)
		}
	}
	if len(st.order) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(st.order))
	}
}

func TestAnonymousSenderFallback(t *testing.T) {
	hub, _ := newTestHub(t)
	s := hub.Connect()

	hub.Dispatch(context.Background(), s, &Command{Kind: CommandSendMessage, Body: "hi"})
	ev := mustEvent(t, s.Events, EventReceiveMessage)
	if ev.Message.Sender != AnonymousSender {
		t.Fatalf("sender = %q, want %q", ev.Message.Sender, AnonymousSender)
	}
}

func TestPersistenceFailureSkipsFanout(t *testing.T) {
	hub, st := newTestHub(t)
	st.failCreate = true

	a := hub.Connect()
	b := hub.Connect()

	hub.Dispatch(context.Background(), a, &Command{Kind: CommandSendMessage, Body: "lost"})
	mustNoEvent(t, a.Events, EventReceiveMessage)
	mustNoEvent(t, b.Events, EventReceiveMessage)
}

func TestRoomScopedMessageDelivery(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	join(t, hub, a, "alice")
	drain(b.Events)

	hub.Dispatch(ctx, a, &Command{Kind: CommandJoinRoom, Room: "r1"})
	hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "first", Room: "r1"})

	mustEvent(t, a.Events, EventReceiveMessage)
	mustNoEvent(t, b.Events, EventReceiveMessage)

	hub.Dispatch(ctx, b, &Command{Kind: CommandJoinRoom, Room: "r1"})
	hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "second", Room: "r1"})

	ev := mustEvent(t, b.Events, EventReceiveMessage)
	if ev.Message.Body != "second" || ev.Message.Room != "r1" {
		t.Fatalf("got %+v, want second/r1", ev.Message)
	}
}

func TestUnknownRoomEmptyFanout(t *testing.T) {
	hub, st := newTestHub(t)
	a := hub.Connect()

	hub.Dispatch(context.Background(), a, &Command{Kind: CommandSendMessage, Body: "void", Room: "nowhere"})
	mustNoEvent(t, a.Events, EventReceiveMessage)
	if len(st.order) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(st.order))
	}
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	hub.Dispatch(ctx, a, &Command{Kind: CommandJoinRoom, Room: "r1"})
	hub.Dispatch(ctx, b, &Command{Kind: CommandJoinRoom, Room: "r1"})
	hub.Dispatch(ctx, b, &Command{Kind: CommandLeaveRoom, Room: "r1"})

	hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "bye", Room: "r1"})
	mustEvent(t, a.Events, EventReceiveMessage)
	mustNoEvent(t, b.Events, EventReceiveMessage)
}

func TestPrivateMessageDeliveredToTargetAndSender(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	c := hub.Connect()
	join(t, hub, a, "alice")
	join(t, hub, b, "bob")
	for _, s := range []*Session{a, b, c} {
		drain(s.Events)
	}

	hub.Dispatch(ctx, a, &Command{Kind: CommandPrivateMessage, To: "bob", Body: "psst"})

	for _, s := range []*Session{a, b} {
		ev := mustEvent(t, s.Events, EventPrivateMessage)
		if !ev.Message.IsPrivate || ev.Message.To != "bob" || ev.Message.Body != "psst" {
			t.Fatalf("got %+v", ev.Message)
		}
	}
	mustNoEvent(t, c.Events, EventPrivateMessage)
}

func TestPrivateMessageBySessionID(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()

	hub.Dispatch(ctx, a, &Command{Kind: CommandPrivateMessage, To: b.ID, Body: "direct"})
	mustEvent(t, a.Events, EventPrivateMessage)
	mustEvent(t, b.Events, EventPrivateMessage)
}

func TestPrivateMessageOfflineTargetPersistsWithoutDelivery(t *testing.T) {
	hub, st := newTestHub(t)
	a := hub.Connect()
	join(t, hub, a, "alice")
	drain(a.Events)

	hub.Dispatch(context.Background(), a, &Command{Kind: CommandPrivateMessage, To: "ghost", Body: "anyone?"})

	mustNoEvent(t, a.Events, EventPrivateMessage)
	if len(st.order) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(st.order))
	}
	msg := st.messages[st.order[0]]
	if !msg.IsPrivate || msg.To != "ghost" {
		t.Fatalf("persisted %+v", msg)
	}
}

func TestTypingBroadcast(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	join(t, hub, a, "alice")
	join(t, hub, b, "bob")
	for _, s := range []*Session{a, b} {
		drain(s.Events)
	}

	hub.Dispatch(ctx, a, &Command{Kind: CommandTyping, IsTyping: true})
	ev := mustEvent(t, b.Events, EventTypingUsers)
	if len(ev.Typing) != 1 || ev.Typing[0] != "alice" {
		t.Fatalf("typing = %v, want [alice]", ev.Typing)
	}

	hub.Dispatch(ctx, a, &Command{Kind: CommandTyping, IsTyping: false})
	ev = mustEvent(t, b.Events, EventTypingUsers)
	if len(ev.Typing) != 0 {
		t.Fatalf("typing = %v, want empty", ev.Typing)
	}
}

func TestAnonymousTypingIgnored(t *testing.T) {
	hub, _ := newTestHub(t)
	a := hub.Connect()
	b := hub.Connect()

	hub.Dispatch(context.Background(), a, &Command{Kind: CommandTyping, IsTyping: true})
	mustNoEvent(t, b.Events, EventTypingUsers)
}

func TestDisconnectClearsTyping(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	join(t, hub, a, "alice")
	join(t, hub, b, "bob")
	hub.Dispatch(ctx, a, &Command{Kind: CommandTyping, IsTyping: true})
	hub.Dispatch(ctx, b, &Command{Kind: CommandTyping, IsTyping: true})
	drain(b.Events)

	hub.Disconnect(ctx, a)

	ev := mustEvent(t, b.Events, EventTypingUsers)
	if len(ev.Typing) != 1 || ev.Typing[0] != "bob" {
		t.Fatalf("typing after disconnect = %v, want [bob]", ev.Typing)
	}
}

func TestDisconnectPresenceAndStore(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	join(t, hub, a, "alice")
	join(t, hub, b, "bob")
	drain(b.Events)

	hub.Disconnect(ctx, a)

	left := mustEvent(t, b.Events, EventUserLeft)
	if left.User != "alice" {
		t.Fatalf("left = %+v, want alice", left)
	}
	list := mustEvent(t, b.Events, EventUserList)
	if len(list.Users) != 1 || list.Users[0].Username != "bob" {
		t.Fatalf("user list = %+v, want only bob", list.Users)
	}
	if st.users["alice"].Online {
		t.Fatal("alice still online in store")
	}
}

func TestDisconnectSharedIdentityKeepsOnline(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	a1 := hub.Connect()
	a2 := hub.Connect()
	join(t, hub, a1, "alice")
	join(t, hub, a2, "alice")
	drain(a2.Events)

	hub.Disconnect(ctx, a1)

	list := mustEvent(t, a2.Events, EventUserList)
	if len(list.Users) != 1 || list.Users[0].Username != "alice" {
		t.Fatalf("user list = %+v, want alice still present", list.Users)
	}
	if !st.users["alice"].Online {
		t.Fatal("alice marked offline while a session remains")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	join(t, hub, a, "alice")
	drain(b.Events)

	hub.Disconnect(ctx, a)
	drain(b.Events)
	hub.Disconnect(ctx, a)

	mustNoEvent(t, b.Events, EventUserLeft)
}

func TestReactionAppendsDuplicates(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "react to me"})
	sent := mustEvent(t, a.Events, EventReceiveMessage)

	hub.Dispatch(ctx, a, &Command{Kind: CommandReactMessage, MessageID: sent.Message.ID, Reaction: "👍"})
	hub.Dispatch(ctx, a, &Command{Kind: CommandReactMessage, MessageID: sent.Message.ID, Reaction: "👍"})

	mustEvent(t, a.Events, EventMessageReacted)
	ev := mustEvent(t, a.Events, EventMessageReacted)
	if len(ev.Message.Reactions) != 2 {
		t.Fatalf("reactions = %v, want two entries", ev.Message.Reactions)
	}
}

func TestReactionUnknownMessageNoFanout(t *testing.T) {
	hub, _ := newTestHub(t)
	a := hub.Connect()

	hub.Dispatch(context.Background(), a, &Command{Kind: CommandReactMessage, MessageID: "missing", Reaction: "🔥"})
	mustNoEvent(t, a.Events, EventMessageReacted)
	mustNoEvent(t, a.Events, EventError)
}

func TestReadReceiptIdempotent(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	join(t, hub, a, "alice")
	drain(a.Events)
	hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "read me"})
	sent := mustEvent(t, a.Events, EventReceiveMessage)

	hub.Dispatch(ctx, a, &Command{Kind: CommandReadMessage, MessageID: sent.Message.ID})
	hub.Dispatch(ctx, a, &Command{Kind: CommandReadMessage, MessageID: sent.Message.ID})

	mustEvent(t, a.Events, EventMessageRead)
	ev := mustEvent(t, a.Events, EventMessageRead)
	if len(ev.Message.ReadBy) != 1 || ev.Message.ReadBy[0] != "alice" {
		t.Fatalf("readBy = %v, want [alice]", ev.Message.ReadBy)
	}
}

func TestDeliveredAckRelayedWithoutPersistence(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	join(t, hub, a, "alice")
	drain(b.Events)

	hub.Dispatch(ctx, a, &Command{Kind: CommandMessageDelivered, MessageID: "m-1"})

	ev := mustEvent(t, b.Events, EventMessageDelivered)
	if ev.MessageID != "m-1" || ev.Reader != "alice" {
		t.Fatalf("delivered = %+v", ev)
	}
	if len(st.order) != 0 {
		t.Fatal("delivery ack should not persist anything")
	}
}

func TestUnreadCountRequesterOnly(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	join(t, hub, a, "alice")
	join(t, hub, b, "bob")
	hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "one"})
	hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "two"})
	for _, s := range []*Session{a, b} {
		drain(s.Events)
	}

	hub.Dispatch(ctx, b, &Command{Kind: CommandUnreadCount})
	ev := mustEvent(t, b.Events, EventUnreadCount)
	if ev.Count != 2 {
		t.Fatalf("count = %d, want 2", ev.Count)
	}
	mustNoEvent(t, a.Events, EventUnreadCount)
}

func TestSearchMessagesRequesterOnly(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	join(t, hub, a, "alice")
	hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "Deploy finished"})
	hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "lunch?"})
	for _, s := range []*Session{a, b} {
		drain(s.Events)
	}

	hub.Dispatch(ctx, a, &Command{Kind: CommandSearchMessages, Query: "deploy"})
	ev := mustEvent(t, a.Events, EventSearchResults)
	if len(ev.Messages) != 1 || ev.Messages[0].Body != "Deploy finished" {
		t.Fatalf("results = %+v", ev.Messages)
	}
	mustNoEvent(t, b.Events, EventSearchResults)
}

func TestFileMessageRouting(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	b := hub.Connect()
	join(t, hub, a, "alice")
	join(t, hub, b, "bob")
	for _, s := range []*Session{a, b} {
		drain(s.Events)
	}

	hub.Dispatch(ctx, a, &Command{Kind: CommandSendFile, FileName: "report.pdf", FileURL: "/uploads/report.pdf"})
	for _, s := range []*Session{a, b} {
		ev := mustEvent(t, s.Events, EventReceiveFile)
		if ev.Message.FileURL != "/uploads/report.pdf" || ev.Message.Body != "report.pdf" {
			t.Fatalf("file event = %+v", ev.Message)
		}
	}

	hub.Dispatch(ctx, a, &Command{Kind: CommandSendFile, FileName: "secret.png", FileURL: "/uploads/secret.png", To: "bob"})
	ev := mustEvent(t, b.Events, EventReceiveFile)
	if !ev.Message.IsPrivate {
		t.Fatal("targeted file message should be private")
	}
}

func TestSlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a := hub.Connect()
	for i := 0; i < cap(a.Events)+8; i++ {
		hub.Dispatch(ctx, a, &Command{Kind: CommandSendMessage, Body: "flood"})
	}
	// Reaching this line at all proves the fanout never blocked.
	if len(a.Events) != cap(a.Events) {
		t.Fatalf("buffered = %d, want full channel %d", len(a.Events), cap(a.Events))
	}
}

func TestLookup(t *testing.T) {
	hub, _ := newTestHub(t)
	s := hub.Connect()

	got, err := hub.Lookup(s.ID)
	if err != nil || got != s {
		t.Fatalf("Lookup(%s) = %v, %v", s.ID, got, err)
	}
	if _, err := hub.Lookup("nope"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}
