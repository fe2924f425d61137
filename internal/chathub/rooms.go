package chathub

import "sort"

// RoomID identifies the live fan-out target for one two-party conversation.
// It is a distinct type so room keys can never be confused with plain
// user-id strings elsewhere in the gateway.
type RoomID string

// CanonicalRoom derives the room for an unordered pair of participants:
// both sides always resolve to the same id regardless of who initiates.
func CanonicalRoom(userA, userB string) RoomID {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return RoomID("conversation:" + pair[0] + "-" + pair[1])
}

// RoomRouter tracks which connections are currently interested in which
// rooms. Membership is connection-scoped: leaving on one device never
// affects another device of the same user. Everything lives in memory and
// is owned by the gateway's run loop; rooms have no persisted existence,
// clients re-join after every (re)connect.
type RoomRouter struct {
	members map[RoomID]map[string]Client
	joined  map[string]map[RoomID]struct{}
}

func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		members: make(map[RoomID]map[string]Client),
		joined:  make(map[string]map[RoomID]struct{}),
	}
}

func (r *RoomRouter) Join(c Client, room RoomID) {
	conns, ok := r.members[room]
	if !ok {
		conns = make(map[string]Client)
		r.members[room] = conns
	}
	conns[c.ConnID()] = c

	rooms, ok := r.joined[c.ConnID()]
	if !ok {
		rooms = make(map[RoomID]struct{})
		r.joined[c.ConnID()] = rooms
	}
	rooms[room] = struct{}{}
}

// Leave removes one connection from one room. A no-op when the connection
// was never joined.
func (r *RoomRouter) Leave(connID string, room RoomID) {
	if conns, ok := r.members[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.members, room)
		}
	}
	if rooms, ok := r.joined[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, connID)
		}
	}
}

// Drop is the implicit leave-everything a closing connection gets.
func (r *RoomRouter) Drop(connID string) {
	for room := range r.joined[connID] {
		if conns, ok := r.members[room]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(r.members, room)
			}
		}
	}
	delete(r.joined, connID)
}

// Members returns a snapshot of the room's connections, safe to iterate
// while membership is being mutated.
func (r *RoomRouter) Members(room RoomID) []Client {
	conns := r.members[room]
	out := make([]Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}
