package models

import "time"

// Message is immutable after creation. There is no edit or delete path.
type Message struct {
	MessageID string    `json:"_id" db:"message_id"`
	ChatID    string    `json:"-" db:"chat_id"`
	SenderID  string    `json:"-" db:"sender_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// RichMessage is a message joined with its sender's profile and its chat's
// full member list. This is the only shape the relay gateway broadcasts:
// fan-out reads Chat.Users and Sender.UserID straight off the payload.
type RichMessage struct {
	Message
	Sender User            `json:"sender"`
	Chat   ChatWithMembers `json:"chat"`
}
