package core

import "sort"

// Presence is one online identity entry as broadcast in user lists.
type Presence struct {
	Username  string
	SessionID string
}

// OnlineUsers derives the ordered online-user list from the registry: one
// entry per identified session, sorted by username then session ID so
// repeated broadcasts are stable.
func (r *Registry) OnlineUsers() []Presence {
	out := make([]Presence, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Identified() {
			out = append(out, Presence{Username: s.Username, SessionID: s.ID})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// TypingTracker holds the transient typing set, recomputed entirely from
// session state. It is never persisted. Callers serialize access.
//
// The typing list is broadcast globally rather than per room; that mirrors the
// room-scoped-messaging mismatch the service has always had and is kept on
// purpose.
type TypingTracker struct {
	typing map[string]string // session ID -> username
}

// NewTypingTracker constructs an empty typing tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{typing: make(map[string]string)}
}

// Set updates a session's typing flag and returns true if the typing set
// changed. Anonymous sessions are ignored so the flag and set stay consistent.
func (t *TypingTracker) Set(s *Session, isTyping bool) bool {
	if !s.Identified() {
		return false
	}
	if isTyping {
		if _, ok := t.typing[s.ID]; ok && s.typing {
			return false
		}
		t.typing[s.ID] = s.Username
		s.typing = true
		return true
	}
	if _, ok := t.typing[s.ID]; !ok {
		return false
	}
	delete(t.typing, s.ID)
	s.typing = false
	return true
}

// Remove clears a session from the typing set, returning true if it was
// present. Used on disconnect.
func (t *TypingTracker) Remove(s *Session) bool {
	if _, ok := t.typing[s.ID]; !ok {
		s.typing = false
		return false
	}
	delete(t.typing, s.ID)
	s.typing = false
	return true
}

// Usernames returns the sorted list of currently-typing usernames.
func (t *TypingTracker) Usernames() []string {
	out := make([]string, 0, len(t.typing))
	for _, name := range t.typing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
