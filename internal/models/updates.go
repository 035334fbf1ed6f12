package models

import "time"

// UpdateMeta accompanies every integration event on the updates topic.
// Audience is the set of user ids the event concerns, i.e. the chat members.
type UpdateMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Audience  []string  `json:"audience"`
}

type MessageSent struct {
	UpdateMeta
	MessageID string `json:"message_id" validate:"required,uuid"`
	SenderID  string `json:"sender_id" validate:"required,uuid"`
	ChatID    string `json:"chat_id" validate:"required,uuid"`
	Content   string `json:"content" validate:"required"`
}
