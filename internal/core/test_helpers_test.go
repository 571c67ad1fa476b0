package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/relaychat/relaychat-server/internal/store"
)

var errStoreDown = errors.New("store down")

// memStore is an in-memory persistence collaborator for hub tests.
type memStore struct {
	mu       sync.Mutex
	messages map[string]*store.Message
	order    []string
	users    map[string]*store.User
	nextID   int64

	failCreate bool
	failUpsert bool
}

func newMemStore() *memStore {
	return &memStore{
		messages: make(map[string]*store.Message),
		users:    make(map[string]*store.User),
	}
}

func (m *memStore) CreateMessage(_ context.Context, msg *store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errStoreDown
	}
	clone := *msg
	m.messages[msg.ID] = &clone
	m.order = append(m.order, msg.ID)
	return nil
}

func (m *memStore) GetMessage(_ context.Context, id string) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *msg
	return &clone, nil
}

func (m *memStore) AppendReaction(_ context.Context, id, reaction string) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	msg.Reactions = append(msg.Reactions, reaction)
	clone := *msg
	return &clone, nil
}

func (m *memStore) MarkRead(_ context.Context, id, reader string) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, r := range msg.ReadBy {
		if r == reader {
			clone := *msg
			return &clone, nil
		}
	}
	msg.ReadBy = append(msg.ReadBy, reader)
	clone := *msg
	return &clone, nil
}

func (m *memStore) ListMessages(_ context.Context, filter store.MessageFilter) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.Message, 0)
	for _, id := range m.order {
		msg := m.messages[id]
		if !filter.IncludePrivate && msg.IsPrivate {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(msg.Body), strings.ToLower(filter.Search)) {
			continue
		}
		clone := *msg
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memStore) CountUnread(_ context.Context, reader string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, msg := range m.messages {
		read := false
		for _, r := range msg.ReadBy {
			if r == reader {
				read = true
				break
			}
		}
		if !read {
			count++
		}
	}
	return count, nil
}

func (m *memStore) UpsertOnlineStatus(_ context.Context, username, socketID string, online bool) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsert {
		return nil, errStoreDown
	}
	u, ok := m.users[username]
	if !ok {
		m.nextID++
		u = &store.User{ID: m.nextID, Username: username}
		m.users[username] = u
	}
	u.Online = online
	u.LastSocketID = socketID
	clone := *u
	return &clone, nil
}

func newTestHub(t *testing.T) (*Hub, *memStore) {
	t.Helper()
	st := newMemStore()
	hub := NewHub(NewRegistry(), NewRoomIndex(), NewTypingTracker(), st, st, nil)
	return hub, st
}

// mustEvent drains the session's event channel until an event of the wanted
// kind appears. Dispatch is synchronous, so pending events are already
// buffered.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			t.Fatalf("expected event kind %v not buffered", kind)
			return nil
		}
	}
}

// mustNoEvent asserts that no event of the given kind is buffered.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v received: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
