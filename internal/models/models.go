package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrChatClosed = errors.New("chat is closed")
	ErrNotSender  = errors.New("message belongs to another sender")
)

type Role string

const (
	RoleClient  Role = "client"
	RoleCurator Role = "curator"
)

type ChatStatus string

const (
	ChatStatusOpen       ChatStatus = "open"
	ChatStatusInProgress ChatStatus = "in_progress"
	ChatStatusClosed     ChatStatus = "closed"
	ChatStatusDelayed    ChatStatus = "delayed"
)

func (s ChatStatus) Valid() bool {
	switch s {
	case ChatStatusOpen, ChatStatusInProgress, ChatStatusClosed, ChatStatusDelayed:
		return true
	}
	return false
}

type ChatType string

const (
	ChatTypeTopic ChatType = "topic"
	ChatTypeOrder ChatType = "order"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeEmoji MessageType = "emoji"
	MessageTypeFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeEmoji, MessageTypeFile:
		return true
	}
	return false
}

// User is the minimal identity the event layer cares about.
// Profile data lives in the identity provider, not here.
type User struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// ChatTopic is a support topic. Permission is the role label a curator
// must hold to see the topic's traffic; it doubles as the broadcast
// group key for chats on this topic.
type ChatTopic struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Permission string `json:"permission"`
}

type Chat struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"clientId"`
	CuratorID string     `json:"curatorId,omitempty"`
	Topic     *ChatTopic `json:"topic,omitempty"`
	Status    ChatStatus `json:"status"`
	Type      ChatType   `json:"chatType"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  time.Time  `json:"closedAt,omitzero"`
}

// Closed reports whether the chat reached its terminal state for
// message creation.
func (c Chat) Closed() bool {
	return c.Status == ChatStatusClosed
}

// MessageFile is attachment metadata carried on a message. Upload and
// blob storage are handled elsewhere; the event layer only relays the
// reference.
type MessageFile struct {
	ID  string `json:"id"`
	URL string `json:"file"`
}

// ChatMessage ID is the chat-local monotonic sequence number assigned
// by storage. Ordered IDs are what make the read watermark meaningful.
type ChatMessage struct {
	ID        int64         `json:"id"`
	ChatID    string        `json:"chat_id"`
	SenderID  string        `json:"sender_id"`
	Text      string        `json:"text,omitempty"`
	Type      MessageType   `json:"message_type"`
	IsRead    bool          `json:"is_read"`
	CreatedAt time.Time     `json:"created_at"`
	Files     []MessageFile `json:"files"`
}
