package core

// RoomIndex maps room names to the sessions subscribed to them. Membership is
// live-connection state only: it is never persisted and every entry references
// a currently registered session. Callers serialize access.
type RoomIndex struct {
	rooms map[string]map[string]*Session
}

// NewRoomIndex constructs an empty room membership index.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[string]*Session)}
}

// Join adds a session to a room. The add is idempotent.
func (ri *RoomIndex) Join(s *Session, room string) {
	members, ok := ri.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		ri.rooms[room] = members
	}
	members[s.ID] = s
	s.rooms[room] = struct{}{}
}

// Leave removes a session from a room. Unknown rooms and non-members are
// no-ops.
func (ri *RoomIndex) Leave(s *Session, room string) {
	if members, ok := ri.rooms[room]; ok {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(ri.rooms, room)
		}
	}
	delete(s.rooms, room)
}

// LeaveAll removes a session from every room it joined. Used on disconnect so
// no room ever holds a stale member.
func (ri *RoomIndex) LeaveAll(s *Session) {
	for room := range s.rooms {
		if members, ok := ri.rooms[room]; ok {
			delete(members, s.ID)
			if len(members) == 0 {
				delete(ri.rooms, room)
			}
		}
	}
	s.rooms = make(map[string]struct{})
}

// MembersOf returns the sessions subscribed to a room, or nil for a room
// nobody joined. Unknown rooms are not an error.
func (ri *RoomIndex) MembersOf(room string) []*Session {
	members, ok := ri.rooms[room]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(members))
	for _, s := range members {
		out = append(out, s)
	}
	return out
}

// Size returns the number of members in a room.
func (ri *RoomIndex) Size(room string) int {
	return len(ri.rooms[room])
}
