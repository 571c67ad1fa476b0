package core

import "github.com/google/uuid"

// Session is one live connection as seen by the core layer. A session starts
// anonymous and may be bound to an identity exactly once; identity outlives
// the session across reconnects. Fields are mutated only by the Hub under its
// lock.
type Session struct {
	ID       string
	Username string
	Events   chan *Event

	rooms  map[string]struct{}
	typing bool
}

// NewSession constructs an anonymous session with an initialized event channel.
func NewSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		Events: make(chan *Event, 32),
		rooms:  make(map[string]struct{}),
	}
}

// Identified reports whether the session has a bound identity.
func (s *Session) Identified() bool {
	return s.Username != ""
}

// Registry tracks live sessions and their identity bindings. It owns the
// session map exclusively; callers serialize access (the Hub holds its lock
// around every call).
type Registry struct {
	sessions map[string]*Session
}

// NewRegistry constructs an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add inserts a session into the registry.
func (r *Registry) Add(s *Session) {
	r.sessions[s.ID] = s
}

// Remove deletes a session. Returns false if the session was not registered,
// making removal idempotent.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Get looks up a session by ID.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Bind attaches an identity to a session. It fails with ErrNotFound for an
// unknown session and ErrInvalidState if the session is already identified.
func (r *Registry) Bind(id, username string) error {
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.Identified() {
		return ErrInvalidState
	}
	s.Username = username
	return nil
}

// All returns every live session.
func (r *Registry) All() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// SharesIdentity reports whether any session other than exceptID is bound to
// the given username. Used to decide whether an identity goes offline on
// disconnect.
func (r *Registry) SharesIdentity(username, exceptID string) bool {
	for id, s := range r.sessions {
		if id != exceptID && s.Username == username {
			return true
		}
	}
	return false
}

// ByUsername returns the live sessions bound to the given identity.
func (r *Registry) ByUsername(username string) []*Session {
	var out []*Session
	for _, s := range r.sessions {
		if s.Username == username {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}
