package models

import "time"

// MessageEvent is pushed over websockets when a message is persisted.
type MessageEvent struct {
	Type       string    `json:"type"`
	ID         int       `json:"id"`
	ChatID     int       `json:"chat_id"`
	SenderID   int       `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessageEvent builds the outbound event for a stored message.
func NewMessageEvent(msg Message, senderName string) MessageEvent {
	return MessageEvent{
		Type:       "message",
		ID:         msg.ID,
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		SenderName: senderName,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
}

// ChatCreatedEvent notifies participants that a chat now exists.
type ChatCreatedEvent struct {
	Type string `json:"type"`
	Chat Chat   `json:"chat"`
}

// NewChatCreatedEvent builds the outbound event for a new chat.
func NewChatCreatedEvent(chat Chat) ChatCreatedEvent {
	return ChatCreatedEvent{Type: "chat_created", Chat: chat}
}

// ErrorEvent is sent back on the same connection for undecodable frames.
type ErrorEvent struct {
	Error string `json:"error"`
}
