package realtime

// Subscriber is the delivery end of a live connection. Send reports false
// when the connection can't keep up; the hub then drops it.
type Subscriber interface {
	Send(event OutgoingEvent) bool
	Close()
}

type session struct {
	userID string
	rooms  map[RoomKey]struct{}
}

// Registry tracks live connections and their room memberships. It is owned
// by the hub's event loop and must only be touched from that goroutine;
// the single ownership is what lets it go without a lock.
type Registry struct {
	sessions map[Subscriber]*session
	rooms    map[RoomKey]map[Subscriber]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[Subscriber]*session),
		rooms:    make(map[RoomKey]map[Subscriber]struct{}),
	}
}

func (r *Registry) Register(s Subscriber) {
	if _, ok := r.sessions[s]; ok {
		return
	}
	r.sessions[s] = &session{
		rooms: make(map[RoomKey]struct{}),
	}
}

// Identify binds the connection to a user and joins their personal inbox
// room. Calling it again overwrites the stored user id; earlier inbox
// memberships stay, matching the reference behavior of rooms accumulating
// until disconnect. Unknown connections are ignored.
func (r *Registry) Identify(s Subscriber, userID string) bool {
	sess, ok := r.sessions[s]
	if !ok {
		return false
	}
	sess.userID = userID
	r.join(s, sess, UserInbox(userID))
	return true
}

// JoinRoom adds the connection to a room. Idempotent; any key is accepted,
// there is no existence check.
func (r *Registry) JoinRoom(s Subscriber, key RoomKey) bool {
	sess, ok := r.sessions[s]
	if !ok {
		return false
	}
	r.join(s, sess, key)
	return true
}

func (r *Registry) join(s Subscriber, sess *session, key RoomKey) {
	sess.rooms[key] = struct{}{}
	members, ok := r.rooms[key]
	if !ok {
		members = make(map[Subscriber]struct{})
		r.rooms[key] = members
	}
	members[s] = struct{}{}
}

func (r *Registry) UserID(s Subscriber) (string, bool) {
	sess, ok := r.sessions[s]
	if !ok || sess.userID == "" {
		return "", false
	}
	return sess.userID, true
}

func (r *Registry) Rooms(s Subscriber) []RoomKey {
	sess, ok := r.sessions[s]
	if !ok {
		return nil
	}
	keys := make([]RoomKey, 0, len(sess.rooms))
	for key := range sess.rooms {
		keys = append(keys, key)
	}
	return keys
}

func (r *Registry) ForEachInRoom(key RoomKey, fn func(Subscriber)) {
	for s := range r.rooms[key] {
		fn(s)
	}
}

// Unregister forgets the connection and all of its room memberships.
func (r *Registry) Unregister(s Subscriber) {
	sess, ok := r.sessions[s]
	if !ok {
		return
	}
	for key := range sess.rooms {
		members := r.rooms[key]
		delete(members, s)
		if len(members) == 0 {
			delete(r.rooms, key)
		}
	}
	delete(r.sessions, s)
}
