package models

type Chat struct {
	ChatID          string  `json:"_id" db:"chat_id"`
	ChatName        *string `json:"chatName,omitempty" db:"chat_name"`
	IsGroupChat     bool    `json:"isGroupChat" db:"is_group_chat"`
	AdminID         *string `json:"groupAdmin,omitempty" db:"admin_id"`
	LatestMessageID *string `json:"latestMessage,omitempty" db:"latest_message_id"`
}

// ChatWithMembers carries the full member list with profile fields attached.
// The fan-out algorithm depends on Users being populated.
type ChatWithMembers struct {
	Chat
	Users []User `json:"users"`
}
