package realtime

// RoomKind separates the two broadcast key spaces: personal inbox rooms
// keyed by user id and chat-scoped rooms keyed by chat id. User ids and chat
// ids share a format, so the kind tag prevents accidental collisions.
type RoomKind uint8

const (
	UserRoom RoomKind = iota
	ChatRoom
)

type RoomKey struct {
	Kind RoomKind
	ID   string
}

// UserInbox is the room a connection joins on setup. Messages are delivered
// here regardless of which chat screen the user has open.
func UserInbox(userID string) RoomKey {
	return RoomKey{Kind: UserRoom, ID: userID}
}

// ChatChannel is the room for chat-scoped presence traffic such as typing
// indicators.
func ChatChannel(chatID string) RoomKey {
	return RoomKey{Kind: ChatRoom, ID: chatID}
}
