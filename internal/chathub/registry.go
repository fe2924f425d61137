package chathub

// SessionRegistry tracks the live connections of each authenticated user.
// It doubles as the personal notification channel: notifying a user means
// delivering to every connection registered here. Like the room router it
// holds no lock of its own; the gateway's run loop is its sole owner.
type SessionRegistry struct {
	conns  map[string]Client
	byUser map[string]map[string]Client
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		conns:  make(map[string]Client),
		byUser: make(map[string]map[string]Client),
	}
}

// Bind registers a connection for its user and reports whether it is the
// user's first live connection (the offline-to-online edge).
func (r *SessionRegistry) Bind(c Client) (first bool) {
	r.conns[c.ConnID()] = c

	user, ok := r.byUser[c.UserID()]
	if !ok {
		user = make(map[string]Client)
		r.byUser[c.UserID()] = user
	}
	first = len(user) == 0
	user[c.ConnID()] = c
	return first
}

// Unbind removes a connection. last reports the online-to-offline edge for
// presence; ok is false when the connection was already gone (teardown is
// signalled from more than one place and must stay idempotent).
func (r *SessionRegistry) Unbind(connID string) (userID string, last bool, ok bool) {
	c, ok := r.conns[connID]
	if !ok {
		return "", false, false
	}
	delete(r.conns, connID)

	userID = c.UserID()
	if user, exists := r.byUser[userID]; exists {
		delete(user, connID)
		if len(user) == 0 {
			delete(r.byUser, userID)
			last = true
		}
	}
	return userID, last, true
}

// ConnectionsOf returns a snapshot of the user's live connections.
func (r *SessionRegistry) ConnectionsOf(userID string) []Client {
	user := r.byUser[userID]
	out := make([]Client, 0, len(user))
	for _, c := range user {
		out = append(out, c)
	}
	return out
}

// All returns a snapshot of every live connection, for system-wide
// presence broadcasts.
func (r *SessionRegistry) All() []Client {
	out := make([]Client, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}
