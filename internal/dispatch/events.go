package dispatch

import (
	"time"

	"kurator/internal/models"
)

type EventType string

const (
	EventUpdateStatus     EventType = "update_status"
	EventNewChat          EventType = "new_chat"
	EventNewMessage       EventType = "new_message"
	EventUpdateMessage    EventType = "update_message"
	EventDeleteMessage    EventType = "delete_message"
	EventAssignCurator    EventType = "assign_curator"
	EventUpdateChatStatus EventType = "update_chat_status"
	EventReadChatMessage  EventType = "read_chat_message"
)

// Envelope is the wire frame every event travels in.
type Envelope struct {
	EventType EventType `json:"event_type"`
	Data      any       `json:"data"`
}

type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
)

type StatusPayload struct {
	UserID string     `json:"user_id"`
	Status UserStatus `json:"status"`
}

type NewChatPayload struct {
	ChatID   string          `json:"chat_id"`
	ChatType models.ChatType `json:"chat_type"`
	UserID   string          `json:"user_id"`
}

// MessagePayload is the full message representation shared by
// new_message and update_message.
type MessagePayload struct {
	ID          int64                `json:"id"`
	ChatID      string               `json:"chat_id"`
	SenderID    string               `json:"sender_id"`
	Text        string               `json:"text,omitempty"`
	MessageType models.MessageType   `json:"message_type"`
	IsRead      bool                 `json:"is_read"`
	CreatedAt   time.Time            `json:"created_at"`
	Files       []models.MessageFile `json:"files"`
}

func NewMessagePayload(msg models.ChatMessage) MessagePayload {
	files := msg.Files
	if files == nil {
		files = []models.MessageFile{}
	}
	return MessagePayload{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		SenderID:    msg.SenderID,
		Text:        msg.Text,
		MessageType: msg.Type,
		IsRead:      msg.IsRead,
		CreatedAt:   msg.CreatedAt,
		Files:       files,
	}
}

type DeleteMessagePayload struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
}

type AssignCuratorPayload struct {
	ChatID    string `json:"chat_id"`
	CuratorID string `json:"curator_id"`
}

type ChatStatusPayload struct {
	ChatID string            `json:"chat_id"`
	Status models.ChatStatus `json:"status"`
}

type ReadChatMessagePayload struct {
	ChatID        string `json:"chat_id"`
	LastMessageID int64  `json:"last_message_id"`
	UserID        string `json:"user_id"`
}
